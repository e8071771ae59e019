package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/kay/internal/clock"
	obsmetrics "github.com/smallbiznis/kay/internal/observability/metrics"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type quotationServiceMock struct {
	mock.Mock
	quotationdomain.Service
}

func (m *quotationServiceMock) ExpireStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newTestScheduler(t *testing.T, svc quotationdomain.Service, cfg Config) (*Scheduler, *obsmetrics.JobMetrics) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	jobMetrics, err := obsmetrics.NewJobMetricsWithRegisterer(prometheus.NewRegistry())
	require.NoError(t, err)

	s, err := New(Params{
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		QuotationSvc: svc,
		Metrics:      jobMetrics,
		Config:       cfg,
	})
	require.NoError(t, err)
	return s, jobMetrics
}

func TestRunOnceExpiresQuotations(t *testing.T) {
	svc := &quotationServiceMock{}
	svc.On("ExpireStale", mock.Anything).Return(int64(3), nil).Once()

	s, jobMetrics := newTestScheduler(t, svc, Config{})
	require.NoError(t, s.RunOnce(context.Background()))

	svc.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(jobMetrics.RunsFor(JobExpireQuotations)))
	assert.Equal(t, float64(0), testutil.ToFloat64(jobMetrics.ErrorsFor(JobExpireQuotations)))
}

func TestRunOnceWrapsJobErrors(t *testing.T) {
	svc := &quotationServiceMock{}
	svc.On("ExpireStale", mock.Anything).Return(int64(0), errors.New("db down")).Once()

	s, jobMetrics := newTestScheduler(t, svc, Config{})
	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobExpireQuotations)
	assert.Equal(t, float64(1), testutil.ToFloat64(jobMetrics.ErrorsFor(JobExpireQuotations)))
}

func TestTimeoutIsSoft(t *testing.T) {
	svc := &quotationServiceMock{}
	svc.On("ExpireStale", mock.Anything).Return(int64(0), context.DeadlineExceeded).Once()

	s, _ := newTestScheduler(t, svc, Config{})
	assert.NoError(t, s.RunOnce(context.Background()))
}

func TestDisabledJobIsSkipped(t *testing.T) {
	svc := &quotationServiceMock{}
	s, _ := newTestScheduler(t, svc, Config{EnabledJobs: []string{"something_else"}})
	require.NoError(t, s.RunOnce(context.Background()))
	svc.AssertNotCalled(t, "ExpireStale", mock.Anything)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
