package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("operator", reg)
	m := NewManager(WithMetrics(metrics))

	ok := m.Create(OpNavigate, "ok", nil)
	require.NoError(t, m.Run(context.Background(), ok, time.Second, func(ctx context.Context) (any, error) {
		return "done", nil
	}))
	bad := m.Create(OpNavigate, "bad", nil)
	require.NoError(t, m.Run(context.Background(), bad, time.Second, func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}))
	pending := m.Create(OpOperate, "never ran", nil)
	require.NoError(t, m.Cancel(pending))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.jobsTotal.WithLabelValues("navigate", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.jobsTotal.WithLabelValues("navigate", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.jobsTotal.WithLabelValues("operate", "cancelled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.jobsRunning))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.jobDuration))

	count, err := testutil.GatherAndCount(reg, "operator_jobs_total", "operator_jobs_running", "operator_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestMetricsRunningGauge(t *testing.T) {
	metrics := NewMetrics("operator", prometheus.NewRegistry())
	m := NewManager(WithMetrics(metrics))

	id := m.Create(OpOperate, "operate", nil)
	release := make(chan struct{})
	require.NoError(t, m.Submit(context.Background(), id, time.Second, func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.jobsRunning))

	close(release)
	_, err := m.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.jobsRunning))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.started()
	metrics.finished(OpClose, StatusCompleted, 1, true)
}
