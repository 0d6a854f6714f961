package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(newTestLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop(), "second stop is a no-op")
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(newTestLogger())
	assert.NoError(t, s.Stop())
}

func TestSchedulerActionFires(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionRetentionCleanup, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, s.AddTask(ScheduledTask{
		Name: "retention", Schedule: "50ms", Action: ActionRetentionCleanup,
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return count.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSchedulerRunOnStart(t *testing.T) {
	fired := make(chan struct{}, 1)

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionRetentionCleanup, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, s.AddTask(ScheduledTask{
		Name: "retention", Schedule: "@daily", Action: ActionRetentionCleanup, RunOnStart: true,
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnStart task did not fire")
	}
}

func TestSchedulerStopWaitsForRunOnStart(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionRetentionCleanup, func(ctx context.Context) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	require.NoError(t, s.AddTask(ScheduledTask{
		Name: "retention", Schedule: "1h", Action: ActionRetentionCleanup, RunOnStart: true,
	}))

	require.NoError(t, s.Start(context.Background()))
	<-started
	require.NoError(t, s.Stop())

	assert.True(t, finished.Load(), "Stop returned while the startup run was still going")
}

func TestSchedulerActionErrorIsLogged(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionRetentionCleanup, func(ctx context.Context) error {
		count.Add(1)
		return errors.New("database is locked")
	})
	require.NoError(t, s.AddTask(ScheduledTask{
		Name: "retention", Schedule: "20ms", Action: ActionRetentionCleanup,
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 10*time.Millisecond,
		"a failing action keeps its schedule")
	require.NoError(t, s.Stop())
}

func TestSchedulerSkipsAfterContextCancel(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionRetentionCleanup, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, s.AddTask(ScheduledTask{
		Name: "retention", Schedule: "20ms", Action: ActionRetentionCleanup,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Zero(t, count.Load())
}

func TestSchedulerUnknownAction(t *testing.T) {
	s := NewScheduler(newTestLogger())

	err := s.AddTask(ScheduledTask{Name: "unknown", Schedule: "1h", Action: "does_not_exist"})
	assert.ErrorContains(t, err, "unknown action")
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionRetentionCleanup, func(ctx context.Context) error { return nil })

	err := s.AddTask(ScheduledTask{Name: "bad", Schedule: "every tuesday", Action: ActionRetentionCleanup})
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestParseSchedule(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule string
		want     time.Time
		wantErr  bool
	}{
		{name: "cron", schedule: "0 3 * * *", want: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)},
		{name: "descriptor", schedule: "@hourly", want: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)},
		{name: "duration", schedule: "1h", want: base.Add(time.Hour)},
		{name: "sub-second duration", schedule: "250ms", want: base.Add(250 * time.Millisecond)},
		{name: "empty", schedule: "", wantErr: true},
		{name: "negative", schedule: "-5m", wantErr: true},
		{name: "garbage", schedule: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := ParseSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, sched.Next(base).Equal(tt.want), "next = %v, want %v", sched.Next(base), tt.want)
		})
	}
}
