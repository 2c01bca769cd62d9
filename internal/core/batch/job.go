package batch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"electoral-service/internal/core/domain"
)

// Status is a progress snapshot.
type Status struct {
	Completed int
	Total     int
	Percent   float64
}

func newStatus(completed, total int) Status {
	s := Status{Completed: completed, Total: total}
	if total > 0 {
		s.Percent = float64(completed) * 100 / float64(total)
	}
	return s
}

// String renders completed/total (percent%).
func (s Status) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", s.Completed, s.Total, s.Percent)
}

// Summary describes a finished job.
type Summary struct {
	JobID     string
	Processed int
	Failed    int
	Errors    []string
	Elapsed   time.Duration
	// Rate is processed units per second.
	Rate float64
}

// Job is a submitted batch.
type Job struct {
	ID         string
	ElectionID domain.ElectionID
	Total      int

	chunksDone atomic.Int64

	mu     sync.Mutex
	errors []string

	done    chan struct{}
	summary Summary
}

// Done is closed when the job has finished and the orchestrator is free.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its summary.
func (j *Job) Wait() Summary {
	<-j.done
	return j.summary
}

func (j *Job) recordError(msg string) {
	j.mu.Lock()
	j.errors = append(j.errors, msg)
	j.mu.Unlock()
}

func (j *Job) summarize(processed int, elapsed time.Duration) Summary {
	j.mu.Lock()
	errs := append([]string(nil), j.errors...)
	j.mu.Unlock()

	s := Summary{
		JobID:     j.ID,
		Processed: processed,
		Failed:    len(errs),
		Errors:    errs,
		Elapsed:   elapsed,
	}
	if elapsed > 0 {
		s.Rate = float64(processed) / elapsed.Seconds()
	}
	return s
}
