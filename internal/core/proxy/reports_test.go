package proxy

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportService is a mock implementation of ports.ReportService
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) FetchScalar(ctx context.Context, kind domain.ReportKind, params ...string) (string, error) {
	args := m.Called(kind, params)
	return args.String(0), args.Error(1)
}

func (m *MockReportService) FetchArray(ctx context.Context, kind domain.ReportKind, params ...string) ([]string, error) {
	args := m.Called(kind, params)
	items, _ := args.Get(0).([]string)
	return items, args.Error(1)
}

func newReports(up *MockReportService, clock *fakeClock) *Reports {
	return NewReports(New(WithClock(clock.Now)), up, TTLs{Election: time.Minute, Reference: time.Hour}, nil)
}

func TestReports_CitizenIsCached(t *testing.T) {
	up := new(MockReportService)
	r := newReports(up, newFakeClock())
	ctx := context.Background()

	up.On("FetchScalar", domain.ReportCitizen, []string{"123"}).Return("42-123-Ana-Lopez#v1-1", nil).Once()

	for i := 0; i < 3; i++ {
		got, err := r.Report(ctx, "citizen", []string{"123"})
		require.NoError(t, err)
		assert.Equal(t, "42-123-Ana-Lopez#v1-1", got)
	}
	up.AssertNumberOfCalls(t, "FetchScalar", 1)
}

func TestReports_NeverCachedKinds(t *testing.T) {
	up := new(MockReportService)
	r := newReports(up, newFakeClock())
	ctx := context.Background()

	up.On("FetchScalar", domain.ReportEligibility, []string{"123", "5"}).Return("1#v1-1", nil)
	up.On("FetchScalar", domain.ReportReportsReady, []string{"5"}).Return("0#v1-1", nil)

	for i := 0; i < 2; i++ {
		_, err := r.Report(ctx, "eligibility", []string{"123", "5"})
		require.NoError(t, err)
		_, err = r.Report(ctx, "reports-ready", []string{"5"})
		require.NoError(t, err)
	}
	up.AssertNumberOfCalls(t, "FetchScalar", 4)
	assert.Equal(t, 0, r.Cache().Stats()[BucketScalar].Entries)
}

func TestReports_ReferenceTTL(t *testing.T) {
	up := new(MockReportService)
	clock := newFakeClock()
	r := newReports(up, clock)
	ctx := context.Background()

	up.On("FetchScalar", domain.ReportGeoSummary, []string{"department", "05", "1"}).Return("geo#v1-1", nil)
	up.On("FetchScalar", domain.ReportElectionSummary, []string{"1"}).Return("sum#v1-1", nil)

	// Two spellings of the same location type share one entry.
	_, err := r.Report(ctx, "geo-summary", []string{"departamento", "05", "1"})
	require.NoError(t, err)
	_, err = r.Report(ctx, "election-summary", []string{"1"})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = r.Report(ctx, "geo-summary", []string{"Department", "05", "1"})
	require.NoError(t, err)
	_, err = r.Report(ctx, "election-summary", []string{"1"})
	require.NoError(t, err)

	up.AssertNumberOfCalls(t, "FetchScalar", 3)
}

func TestReports_InvalidArguments(t *testing.T) {
	up := new(MockReportService)
	r := newReports(up, newFakeClock())
	ctx := context.Background()

	_, err := r.Report(ctx, "nope", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = r.Report(ctx, "search", []string{"x"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "search is an array kind")

	_, err = r.ReportArray(ctx, "citizen", []string{"1"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = r.Report(ctx, "geo-summary", []string{"galaxy", "1", "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = r.Report(ctx, "citizen", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	up.AssertNotCalled(t, "FetchScalar", mock.Anything, mock.Anything)
}

func TestReports_UpstreamSentinelIsAFailure(t *testing.T) {
	up := new(MockReportService)
	clock := newFakeClock()
	r := newReports(up, clock)
	ctx := context.Background()

	up.On("FetchScalar", domain.ReportCitizen, []string{"7"}).Return("seed#v1-1", nil).Once()
	up.On("FetchScalar", domain.ReportCitizen, []string{"7"}).Return("ERROR-db locked-5", nil)

	_, err := r.Report(ctx, "citizen", []string{"7"})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	// The sentinel is not cached; the stale value wins.
	got, err := r.Report(ctx, "citizen", []string{"7"})
	require.NoError(t, err)
	assert.Equal(t, "seed#v1-1", got)

	up.On("FetchScalar", domain.ReportCitizen, []string{"8"}).Return("ERROR-no such citizen-5", nil)
	_, err = r.Report(ctx, "citizen", []string{"8"})
	var re *wire.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "no such citizen", re.Message)
	assert.Equal(t, "ERROR-no such citizen-"+strconv.FormatInt(clock.Now().UnixMilli(), 10), ErrorSentinel(err, clock.Now()))
}

func TestReports_ArrayKinds(t *testing.T) {
	up := new(MockReportService)
	r := newReports(up, newFakeClock())
	ctx := context.Background()

	up.On("FetchArray", domain.ReportElectionList, []string(nil)).Return([]string{"1-Pres#v-1", "2-Sen#v-1"}, nil).Once()
	up.On("FetchArray", domain.ReportSearch, []string{"lopez"}).Return(nil, errors.New("timeout"))

	got, err := r.ReportArray(ctx, "election-list", nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	_, err = r.ReportArray(ctx, "election-list", nil)
	require.NoError(t, err)

	_, err = r.ReportArray(ctx, "search", []string{"lopez"})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	up.AssertNumberOfCalls(t, "FetchArray", 2)
}
