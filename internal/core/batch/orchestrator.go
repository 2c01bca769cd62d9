// Package batch runs bulk generation of per-unit configuration artifacts.
//
// An Orchestrator runs at most one job at a time. A job splits its unit ids
// into chunks, runs the chunks on a bounded pool of goroutines and generates
// then persists every unit. A failed unit is recorded and skipped; it never
// stops its chunk or the job.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/ports"
	"electoral-service/internal/observability"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkSize     = 100
	DefaultWorkers       = 4
	DefaultProgressEvery = 10
)

// GeneratorFunc adapts a function to ports.ConfigurationGenerator.
type GeneratorFunc func(ctx context.Context, unitID int, electionID domain.ElectionID) (domain.Artifact, error)

func (f GeneratorFunc) Generate(ctx context.Context, unitID int, electionID domain.ElectionID) (domain.Artifact, error) {
	return f(ctx, unitID, electionID)
}

// SinkFunc adapts a function to ports.ArtifactSink.
type SinkFunc func(ctx context.Context, unitID int, artifact domain.Artifact) error

func (f SinkFunc) Persist(ctx context.Context, unitID int, artifact domain.Artifact) error {
	return f(ctx, unitID, artifact)
}

type options struct {
	chunkSize     int
	workers       int
	progressEvery int
	logger        hclog.Logger
	units         ports.UnitSource
	now           func() time.Time
}

// Option configures an Orchestrator.
type Option func(*options)

// WithChunkSize sets how many units one pool task handles.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithWorkers bounds the number of chunks processed concurrently, and with
// it the number of concurrent upstream calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgressEvery logs a progress line after every n finished chunks.
func WithProgressEvery(n int) Option {
	return func(o *options) { o.progressEvery = n }
}

func WithLogger(l hclog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithUnitSource enables SubmitAll and SubmitScope.
func WithUnitSource(s ports.UnitSource) Option {
	return func(o *options) { o.units = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Orchestrator is the single-flight job controller.
type Orchestrator struct {
	generator ports.ConfigurationGenerator
	sink      ports.ArtifactSink
	units     ports.UnitSource

	chunkSize     int
	workers       int
	progressEvery int
	logger        hclog.Logger
	now           func() time.Time

	inFlight  atomic.Bool
	completed atomic.Int64
	total     atomic.Int64

	mu      sync.Mutex
	current *Job
	last    *Summary
}

// New creates an Orchestrator that generates with gen and persists to sink.
func New(gen ports.ConfigurationGenerator, sink ports.ArtifactSink, opts ...Option) *Orchestrator {
	o := options{
		chunkSize:     DefaultChunkSize,
		workers:       DefaultWorkers,
		progressEvery: DefaultProgressEvery,
		logger:        hclog.NewNullLogger(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkSize <= 0 {
		o.chunkSize = DefaultChunkSize
	}
	if o.workers <= 0 {
		o.workers = DefaultWorkers
	}
	if o.progressEvery <= 0 {
		o.progressEvery = DefaultProgressEvery
	}
	return &Orchestrator{
		generator:     gen,
		sink:          sink,
		units:         o.units,
		chunkSize:     o.chunkSize,
		workers:       o.workers,
		progressEvery: o.progressEvery,
		logger:        o.logger,
		now:           o.now,
	}
}

// Running reports whether a job is in flight.
func (o *Orchestrator) Running() bool {
	return o.inFlight.Load()
}

// Status returns the progress of the running job. Between jobs it is zero.
func (o *Orchestrator) Status() Status {
	return newStatus(int(o.completed.Load()), int(o.total.Load()))
}

// Current returns the running job, or nil.
func (o *Orchestrator) Current() *Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// LastSummary returns the summary of the most recently finished job.
func (o *Orchestrator) LastSummary() (Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Summary{}, false
	}
	return *o.last, true
}

// Submit starts a job over unitIDs and returns without waiting for it.
// Duplicate ids are dropped, keeping the first occurrence. It fails with
// domain.ErrAlreadyRunning while another job is in flight.
//
// The job does not inherit cancellation from ctx; once started it runs to
// completion.
func (o *Orchestrator) Submit(ctx context.Context, unitIDs []int, electionID domain.ElectionID) (*Job, error) {
	ids := dedupe(unitIDs)
	if len(ids) == 0 {
		return nil, domain.Errorf(domain.KindInvalidArgument, "no units to process")
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		observability.BatchRejectedTotal.Inc()
		o.logger.Warn("batch rejected, a job is already running", "election", electionID, "units", len(ids))
		return nil, domain.Errorf(domain.KindAlreadyRunning, "a batch job is already running")
	}

	job := &Job{
		ID:         uuid.NewString(),
		ElectionID: electionID,
		Total:      len(ids),
		done:       make(chan struct{}),
	}
	o.total.Store(int64(len(ids)))
	o.completed.Store(0)
	o.mu.Lock()
	o.current = job
	o.mu.Unlock()
	observability.BatchInFlight.Set(1)

	o.logger.Info("batch job started", "job", job.ID, "election", electionID,
		"units", len(ids), "chunk_size", o.chunkSize, "workers", o.workers)

	go o.run(context.WithoutCancel(ctx), job, ids)
	return job, nil
}

// SubmitList is Submit under the name used next to SubmitAll and SubmitScope.
func (o *Orchestrator) SubmitList(ctx context.Context, electionID domain.ElectionID, unitIDs []int) (*Job, error) {
	return o.Submit(ctx, unitIDs, electionID)
}

// SubmitAll starts a job over every unit of the election.
func (o *Orchestrator) SubmitAll(ctx context.Context, electionID domain.ElectionID) (*Job, error) {
	if err := o.precheck(); err != nil {
		return nil, err
	}
	ids, err := o.units.AllUnits(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	return o.Submit(ctx, ids, electionID)
}

// SubmitScope starts a job over the units of one geographic node.
func (o *Orchestrator) SubmitScope(ctx context.Context, electionID domain.ElectionID, scope domain.Scope) (*Job, error) {
	if err := o.precheck(); err != nil {
		return nil, err
	}
	ids, err := o.units.UnitsInScope(ctx, electionID, scope)
	if err != nil {
		return nil, fmt.Errorf("listing units in %s: %w", scope, err)
	}
	return o.Submit(ctx, ids, electionID)
}

// precheck fails fast before an upstream listing call. Submit still performs
// the authoritative claim.
func (o *Orchestrator) precheck() error {
	if o.units == nil {
		return domain.Errorf(domain.KindInvalidArgument, "no unit source configured")
	}
	if o.inFlight.Load() {
		observability.BatchRejectedTotal.Inc()
		return domain.Errorf(domain.KindAlreadyRunning, "a batch job is already running")
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *Job, ids []int) {
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("batch job aborted", "job", job.ID, "panic", r)
			job.recordError(fmt.Sprintf("job aborted: %v", r))
		}

		elapsed := o.now().Sub(start)
		summary := job.summarize(int(o.completed.Load()), elapsed)
		observability.BatchJobDurationSeconds.Observe(elapsed.Seconds())

		o.mu.Lock()
		o.last = &summary
		o.current = nil
		o.mu.Unlock()

		o.completed.Store(0)
		o.total.Store(0)
		observability.BatchInFlight.Set(0)
		o.inFlight.Store(false)

		o.logger.Info("batch job finished", "job", job.ID, "processed", summary.Processed,
			"failed", summary.Failed, "elapsed", summary.Elapsed, "rate", fmt.Sprintf("%.1f/s", summary.Rate))

		job.summary = summary
		close(job.done)
	}()

	chunks := chunk(ids, o.chunkSize)

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			o.runChunk(ctx, job, i, c, len(chunks))
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) runChunk(ctx context.Context, job *Job, index int, units []int, chunks int) {
	for _, unitID := range units {
		if err := o.processUnit(ctx, job.ElectionID, unitID); err != nil {
			observability.BatchUnitsTotal.WithLabelValues("failed").Inc()
			o.logger.Warn("unit failed", "job", job.ID, "unit", unitID, "error", err)
			job.recordError(fmt.Sprintf("unit %d: %v", unitID, err))
		} else {
			observability.BatchUnitsTotal.WithLabelValues("ok").Inc()
		}
		o.completed.Add(1)
	}

	done := job.chunksDone.Add(1)
	if done%int64(o.progressEvery) == 0 || done == int64(chunks) {
		st := o.Status()
		o.logger.Info("batch progress", "job", job.ID, "chunks", fmt.Sprintf("%d/%d", done, chunks),
			"last_chunk", index, "status", st.String())
	}
}

// processUnit generates and persists one unit. A panic in either
// collaborator is reported as that unit's failure.
func (o *Orchestrator) processUnit(ctx context.Context, electionID domain.ElectionID, unitID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.Errorf(domain.KindUnitGenerationFailed, "panic: %v", r)
		}
	}()

	artifact, err := o.generator.Generate(ctx, unitID, electionID)
	if err != nil {
		return domain.Wrap(domain.KindUnitGenerationFailed, err, "generate")
	}
	if err := o.sink.Persist(ctx, unitID, artifact); err != nil {
		return domain.Wrap(domain.KindUnitGenerationFailed, err, "persist")
	}
	return nil
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunk(ids []int, size int) [][]int {
	out := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
