package schedule

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(slog.New(slog.NewTextHandler(noopWriter{}, nil)))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestScheduleAutomation_RequiresRegisteredPlugin(t *testing.T) {
	s := newTestScheduler()
	err := s.ScheduleAutomation("a1", "cron", "* * * * * *", "")
	require.Error(t, err)
}

func TestScheduleAutomation_ArmsThenFires(t *testing.T) {
	s := newTestScheduler()
	var fired atomic.Int32
	done := make(chan struct{})
	s.RegisterPlugin("cron", func(automationID, executionID string, tickAt time.Time) {
		fired.Add(1)
		close(done)
	})

	require.NoError(t, s.ScheduleAutomation("a1", "cron", "* * * * * *", ""))
	state, ok := s.JobState("a1")
	require.True(t, ok)
	require.Equal(t, StateArmed, state)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
	require.Equal(t, int32(1), fired.Load())
}

// TestScheduler_SingleFlightDropsOverlappingTick is the single-flight
// scenario: two ticks 100ms apart for an automation whose callback sleeps
// 500ms. Exactly one callback invocation should complete; the second tick
// must be dropped, not queued.
func TestScheduler_SingleFlightDropsOverlappingTick(t *testing.T) {
	s := newTestScheduler()
	var mu sync.Mutex
	var invocations int
	var concurrent int32
	maxConcurrent := int32(0)

	s.RegisterPlugin("cron", func(automationID, executionID string, tickAt time.Time) {
		cur := atomic.AddInt32(&concurrent, 1)
		if cur > maxConcurrent {
			maxConcurrent = cur
		}
		time.Sleep(500 * time.Millisecond)
		mu.Lock()
		invocations++
		mu.Unlock()
		atomic.AddInt32(&concurrent, -1)
	})

	sched, err := defaultParser.Parse("0 0 1 1 *")
	require.NoError(t, err)
	j := &job{automationID: "a1", pluginID: "cron", schedule: sched, timezone: time.UTC}
	s.mu.Lock()
	s.jobs["a1"] = j
	s.mu.Unlock()
	j.callback = s.callbacksFor(t)

	// Fire a tick, then fire a second tick 100ms later while the first is
	// still sleeping: the second must observe StateFiring and be dropped.
	go s.fire(j)
	time.Sleep(100 * time.Millisecond)
	s.fire(j)

	time.Sleep(700 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, invocations)
	require.LessOrEqual(t, maxConcurrent, int32(1))
}

// callbacksFor is a test-only helper exposing the registered "cron"
// callback directly, avoiding a second ScheduleAutomation call (which
// would arm a real timer and race with the manual fire() calls above).
func (s *Scheduler) callbacksFor(t *testing.T) FireFunc {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.callbacks["cron"]
	require.True(t, ok)
	return cb
}

func TestValidate_RejectsMalformedExpression(t *testing.T) {
	_, err := Validate("not a cron", "")
	require.Error(t, err)
}

func TestValidate_ComputesNextRun(t *testing.T) {
	next, err := Validate("0 0 * * *", "UTC")
	require.NoError(t, err)
	require.True(t, next.After(time.Now()))
}

func TestUnscheduleAutomation_StopsTimerAndReturnsIdle(t *testing.T) {
	s := newTestScheduler()
	s.RegisterPlugin("cron", func(automationID, executionID string, tickAt time.Time) {})
	require.NoError(t, s.ScheduleAutomation("a1", "cron", "0 0 1 1 *", ""))

	s.UnscheduleAutomation("a1")
	_, ok := s.JobState("a1")
	require.False(t, ok)
}

func TestUnregisterPlugin_CancelsAllItsJobs(t *testing.T) {
	s := newTestScheduler()
	s.RegisterPlugin("cron", func(automationID, executionID string, tickAt time.Time) {})
	require.NoError(t, s.ScheduleAutomation("a1", "cron", "0 0 1 1 *", ""))
	require.NoError(t, s.ScheduleAutomation("a2", "cron", "0 0 1 1 *", ""))

	s.UnregisterPlugin("cron")

	_, ok1 := s.JobState("a1")
	_, ok2 := s.JobState("a2")
	require.False(t, ok1)
	require.False(t, ok2)

	err := s.ScheduleAutomation("a3", "cron", "0 0 1 1 *", "")
	require.Error(t, err)
}
