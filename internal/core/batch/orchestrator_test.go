package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func okGenerator(calls *atomic.Int32) GeneratorFunc {
	return func(_ context.Context, unitID int, e domain.ElectionID) (domain.Artifact, error) {
		if calls != nil {
			calls.Add(1)
		}
		return domain.Artifact{UnitID: unitID, ElectionID: e, PackageVersion: "v1"}, nil
	}
}

// memorySink records persisted artifacts.
type memorySink struct {
	mu    sync.Mutex
	saved map[int]domain.Artifact
}

func newMemorySink() *memorySink { return &memorySink{saved: make(map[int]domain.Artifact)} }

func (s *memorySink) Persist(_ context.Context, unitID int, a domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[unitID] = a
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func waitJob(t *testing.T, job *Job) Summary {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	return job.Wait()
}

func units(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

func TestSubmit_ProcessesEveryUnit(t *testing.T) {
	sink := newMemorySink()
	o := New(okGenerator(nil), sink, WithChunkSize(7), WithWorkers(3))

	job, err := o.Submit(context.Background(), units(50), 1)
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, 50, job.Total)

	sum := waitJob(t, job)
	assert.Equal(t, 50, sum.Processed)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, job.ID, sum.JobID)
	assert.Equal(t, 50, sink.count())
	assert.False(t, o.Running())
	assert.Equal(t, Status{}, o.Status(), "counters reset between jobs")

	last, ok := o.LastSummary()
	require.True(t, ok)
	assert.Equal(t, sum, last)
}

func TestSubmit_DeduplicatesKeepingOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	gen := GeneratorFunc(func(_ context.Context, unitID int, e domain.ElectionID) (domain.Artifact, error) {
		mu.Lock()
		seen = append(seen, unitID)
		mu.Unlock()
		return domain.Artifact{UnitID: unitID}, nil
	})
	o := New(gen, newMemorySink(), WithWorkers(1))

	job, err := o.Submit(context.Background(), []int{3, 1, 3, 2, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Total)
	waitJob(t, job)
	assert.Equal(t, []int{3, 1, 2}, seen)
}

func TestSubmit_RejectsEmpty(t *testing.T) {
	o := New(okGenerator(nil), newMemorySink())
	_, err := o.Submit(context.Background(), nil, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.False(t, o.Running())
}

func TestSubmit_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	gen := GeneratorFunc(func(_ context.Context, unitID int, e domain.ElectionID) (domain.Artifact, error) {
		calls.Add(1)
		<-release
		return domain.Artifact{UnitID: unitID}, nil
	})
	o := New(gen, newMemorySink(), WithChunkSize(2), WithWorkers(2))

	rejected := testutil.ToFloat64(observability.BatchRejectedTotal)

	first, err := o.Submit(context.Background(), units(6), 1)
	require.NoError(t, err)
	assert.True(t, o.Running())

	second, err := o.Submit(context.Background(), units(100), 1)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
	assert.Equal(t, rejected+1, testutil.ToFloat64(observability.BatchRejectedTotal))
	assert.Equal(t, 6, o.Status().Total, "the rejected job must not replace the running one")

	close(release)
	sum := waitJob(t, first)
	assert.Equal(t, 6, sum.Processed)
	assert.Equal(t, int32(6), calls.Load(), "no second worker sweep")

	// The flag is released: a new submission is accepted.
	third, err := o.Submit(context.Background(), units(1), 1)
	require.NoError(t, err)
	waitJob(t, third)
}

func TestSubmit_PartialFailureIsolation(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, unitID int, e domain.ElectionID) (domain.Artifact, error) {
		if unitID == 4 {
			return domain.Artifact{}, errors.New("template missing")
		}
		return domain.Artifact{UnitID: unitID}, nil
	})
	sink := newMemorySink()
	o := New(gen, sink, WithChunkSize(3), WithWorkers(2))

	job, err := o.Submit(context.Background(), units(10), 7)
	require.NoError(t, err)
	sum := waitJob(t, job)

	// Failed units count as processed.
	assert.Equal(t, 10, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "unit 4")
	assert.Contains(t, sum.Errors[0], "template missing")
	assert.Equal(t, 9, sink.count())
}

func TestSubmit_PersistFailureIsRecorded(t *testing.T) {
	sink := SinkFunc(func(_ context.Context, unitID int, a domain.Artifact) error {
		if unitID%2 == 0 {
			return errors.New("disk full")
		}
		return nil
	})
	o := New(okGenerator(nil), sink)

	job, err := o.Submit(context.Background(), units(4), 1)
	require.NoError(t, err)
	sum := waitJob(t, job)
	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 2, sum.Failed)
}

func TestSubmit_ProgressIsMonotonic(t *testing.T) {
	step := make(chan struct{})
	gen := GeneratorFunc(func(_ context.Context, unitID int, e domain.ElectionID) (domain.Artifact, error) {
		<-step
		return domain.Artifact{UnitID: unitID}, nil
	})
	o := New(gen, newMemorySink(), WithChunkSize(5), WithWorkers(2))

	job, err := o.Submit(context.Background(), units(20), 1)
	require.NoError(t, err)

	prev := 0
	for i := 0; i < 20; i++ {
		step <- struct{}{}
		st := o.Status()
		if st.Total == 0 {
			break
		}
		assert.GreaterOrEqual(t, st.Completed, prev)
		assert.LessOrEqual(t, st.Completed, st.Total)
		prev = st.Completed
	}
	sum := waitJob(t, job)
	assert.Equal(t, 20, sum.Processed)
}

func TestSubmit_ReleasesFlagAfterPanic(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, unitID int, e domain.ElectionID) (domain.Artifact, error) {
		panic("generator crashed")
	})
	o := New(gen, newMemorySink())

	job, err := o.Submit(context.Background(), units(3), 1)
	require.NoError(t, err)
	sum := waitJob(t, job)

	assert.Equal(t, 3, sum.Failed)
	assert.False(t, o.Running())

	_, err = o.Submit(context.Background(), units(1), 1)
	assert.NoError(t, err)
}

func TestSubmit_OutlivesCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	o := New(okGenerator(&calls), newMemorySink())

	job, err := o.Submit(ctx, units(5), 1)
	require.NoError(t, err)
	cancel()

	sum := waitJob(t, job)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, int32(5), calls.Load())
}

// MockUnitSource is a mock implementation of ports.UnitSource
type MockUnitSource struct {
	mock.Mock
}

func (m *MockUnitSource) AllUnits(ctx context.Context, electionID domain.ElectionID) ([]int, error) {
	args := m.Called(electionID)
	ids, _ := args.Get(0).([]int)
	return ids, args.Error(1)
}

func (m *MockUnitSource) UnitsInScope(ctx context.Context, electionID domain.ElectionID, scope domain.Scope) ([]int, error) {
	args := m.Called(electionID, scope)
	ids, _ := args.Get(0).([]int)
	return ids, args.Error(1)
}

func TestSubmitAllAndScope(t *testing.T) {
	src := new(MockUnitSource)
	scope := domain.Scope{Type: domain.Municipality, Code: "05001"}
	src.On("AllUnits", domain.ElectionID(2)).Return([]int{1, 2, 3}, nil)
	src.On("UnitsInScope", domain.ElectionID(2), scope).Return([]int{9}, nil)

	o := New(okGenerator(nil), newMemorySink(), WithUnitSource(src))

	job, err := o.SubmitAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, waitJob(t, job).Processed)

	job, err = o.SubmitScope(context.Background(), 2, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, waitJob(t, job).Processed)

	job, err = o.SubmitList(context.Background(), 2, []int{4, 5})
	require.NoError(t, err)
	assert.Equal(t, 2, waitJob(t, job).Processed)

	src.AssertExpectations(t)
}

func TestSubmitAll_ListingFailure(t *testing.T) {
	src := new(MockUnitSource)
	src.On("AllUnits", domain.ElectionID(3)).Return(nil, domain.Errorf(domain.KindUpstreamUnavailable, "down"))

	o := New(okGenerator(nil), newMemorySink(), WithUnitSource(src))
	_, err := o.SubmitAll(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.False(t, o.Running())

	_, err = New(okGenerator(nil), newMemorySink()).SubmitAll(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "0/0 (0.0%)", newStatus(0, 0).String())
	assert.Equal(t, "25/100 (25.0%)", newStatus(25, 100).String())
	assert.Equal(t, "1/3 (33.3%)", newStatus(1, 3).String())
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2, 3}}, chunk([]int{1, 2, 3}, 100))
}

func TestCurrent(t *testing.T) {
	release := make(chan struct{})
	gen := GeneratorFunc(func(_ context.Context, unitID int, e domain.ElectionID) (domain.Artifact, error) {
		<-release
		return domain.Artifact{UnitID: unitID}, nil
	})
	o := New(gen, newMemorySink())
	assert.Nil(t, o.Current())

	job, err := o.Submit(context.Background(), units(2), 1)
	require.NoError(t, err)
	assert.Same(t, job, o.Current())

	close(release)
	waitJob(t, job)
	assert.Nil(t, o.Current())
}
