package scheduler

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lunchbot-api/internal/config"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Timezone:        "Asia/Tashkent",
		MorningPrompt:   "0 7 * * *",
		DailySummary:    "0 10 * * *",
		DebtCheck:       "0 12 * * *",
		LowBalanceCheck: "0 12 * * *",
		NightlyCleanup:  "0 0 * * *",
		SheetSync:       "0 * * * *",
		Enabled:         true,
	}
}

func newTestScheduler(t *testing.T, cfg config.SchedulerConfig) (Scheduler, error) {
	t.Helper()

	f := newJobsFixture(t)
	metrics := NewJobMetrics(prometheus.NewRegistry())
	return NewScheduler(cfg, f.jobs, metrics, zaptest.NewLogger(t))
}

func TestNewScheduler(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		s, err := newTestScheduler(t, testSchedulerConfig())
		require.NoError(t, err)
		assert.False(t, s.IsRunning())
	})

	t.Run("invalid timezone", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.Timezone = "Mars/Olympus"
		_, err := newTestScheduler(t, cfg)
		require.Error(t, err)
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("invalid cron expression", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.MorningPrompt = "not a cron"
		_, err := newTestScheduler(t, cfg)
		require.Error(t, err)
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("empty sheet sync expression is tolerated", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.SheetSync = ""
		_, err := newTestScheduler(t, cfg)
		assert.NoError(t, err)
	})
}

func TestSchedulerLifecycle(t *testing.T) {
	s, err := newTestScheduler(t, testSchedulerConfig())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	// Double start is rejected.
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	// Double stop is rejected.
	assert.Error(t, s.Stop())
}

func TestJobWrapRecoversPanic(t *testing.T) {
	f := newJobsFixture(t)
	metrics := NewJobMetrics(prometheus.NewRegistry())
	sched, err := NewScheduler(testSchedulerConfig(), f.jobs, metrics, zaptest.NewLogger(t))
	require.NoError(t, err)

	impl := sched.(*scheduler)
	wrapped := impl.wrap("panicky", func() (int, error) {
		panic("boom")
	})

	assert.NotPanics(t, wrapped)
}
