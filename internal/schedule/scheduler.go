package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/interperrors"
)

// Scheduler owns every automation's cron timer. At most one job exists
// per automationId; re-scheduling cancels and replaces the prior timer
// atomically.
type Scheduler struct {
	mu        sync.Mutex
	jobs      map[string]*job
	callbacks map[string]FireFunc
	logger    *slog.Logger
}

// NewScheduler returns a scheduler with no armed jobs.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:      make(map[string]*job),
		callbacks: make(map[string]FireFunc),
		logger:    logger,
	}
}

// RegisterPlugin associates a plugin id with its execution callback.
// ScheduleAutomation calls for that plugin fail until it is registered.
func (s *Scheduler) RegisterPlugin(pluginID string, cb FireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[pluginID] = cb
}

// UnregisterPlugin removes a plugin's callback and cancels every job it
// owns: unregistering a plugin cancels all its jobs.
func (s *Scheduler) UnregisterPlugin(pluginID string) {
	s.mu.Lock()
	delete(s.callbacks, pluginID)
	var cancelled []*job
	for id, j := range s.jobs {
		if j.pluginID == pluginID {
			cancelled = append(cancelled, j)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, j := range cancelled {
		j.stop()
	}
}

// Validate parses a cron expression and timezone with no side effects,
// returning the next fire instant.
func Validate(cronExpression, timezone string) (nextRun time.Time, err error) {
	sched, err := defaultParser.Parse(cronExpression)
	if err != nil {
		return time.Time{}, interperrors.Wrap(interperrors.CronInvalid, cronExpression, err)
	}
	loc, err := resolveLocation(timezone)
	if err != nil {
		return time.Time{}, interperrors.Wrap(interperrors.CronInvalid, "invalid timezone "+timezone, err)
	}
	return sched.Next(time.Now().In(loc)), nil
}

func resolveLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}

// ScheduleAutomation arms a job for automationID, replacing any job
// already scheduled for it. The plugin named by pluginID must already be
// registered via RegisterPlugin.
func (s *Scheduler) ScheduleAutomation(automationID, pluginID, cronExpression, timezone string) error {
	s.mu.Lock()
	cb, ok := s.callbacks[pluginID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("schedule: plugin %q has no registered callback", pluginID)
	}

	sched, err := defaultParser.Parse(cronExpression)
	if err != nil {
		return interperrors.Wrap(interperrors.CronInvalid, cronExpression, err)
	}
	loc, err := resolveLocation(timezone)
	if err != nil {
		return interperrors.Wrap(interperrors.CronInvalid, "invalid timezone "+timezone, err)
	}

	newJob := &job{
		automationID: automationID,
		pluginID:     pluginID,
		schedule:     sched,
		timezone:     loc,
		callback:     cb,
	}

	s.mu.Lock()
	if existing, present := s.jobs[automationID]; present {
		existing.stop()
	}
	s.jobs[automationID] = newJob
	s.mu.Unlock()

	s.arm(newJob)
	return nil
}

// UnscheduleAutomation cancels automationID's job, if any, and returns it
// to idle.
func (s *Scheduler) UnscheduleAutomation(automationID string) {
	s.mu.Lock()
	j, ok := s.jobs[automationID]
	delete(s.jobs, automationID)
	s.mu.Unlock()
	if ok {
		j.stop()
	}
}

// ActiveJobCount returns the number of automations currently armed.
// Polled by internal/metrics to publish a scheduler depth gauge.
func (s *Scheduler) ActiveJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// JobState reports a job's current state, mainly for tests.
func (s *Scheduler) JobState(automationID string) (State, bool) {
	s.mu.Lock()
	j, ok := s.jobs[automationID]
	s.mu.Unlock()
	if !ok {
		return StateIdle, false
	}
	return j.getState(), true
}

func (j *job) stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
	j.state = StateIdle
}

// arm computes the next fire instant and schedules the timer for it. A
// time.Timer the scheduler rearms after every fire or skipped tick
// replaces cron's own goroutine-per-entry model, so idle/armed/firing/
// cooling stay explicit and independently testable.
func (s *Scheduler) arm(j *job) {
	next := j.schedule.Next(time.Now().In(j.timezone))
	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}
	j.setState(StateArmed)

	j.mu.Lock()
	j.timer = time.AfterFunc(delay, func() { s.fire(j) })
	j.mu.Unlock()
}

// fire runs at a job's tick. A tick observed while the job is already
// firing is dropped, never queued, and logged as a warning — the
// single-flight guarantee.
func (s *Scheduler) fire(j *job) {
	j.mu.Lock()
	if j.state == StateFiring {
		j.mu.Unlock()
		s.logger.Warn("schedule: dropping tick, automation already firing", "automationId", j.automationID)
		return
	}
	j.state = StateFiring
	j.mu.Unlock()

	tickAt := time.Now()
	executionID := uuid.NewString()
	j.callback(j.automationID, executionID, tickAt)

	j.setState(StateCooling)

	s.mu.Lock()
	_, stillScheduled := s.jobs[j.automationID]
	s.mu.Unlock()

	if stillScheduled {
		s.arm(j)
	} else {
		j.setState(StateIdle)
	}
}

// cronTriggerConfig is the shape of Automation.TriggerConfig for
// triggerType "cron".
type cronTriggerConfig struct {
	CronExpression string `json:"cronExpression"`
	Timezone       string `json:"timezone"`
}

// LoadAndArm re-arms every enabled cron automation at process start,
// skipping forward past any missed ticks rather than backfilling them.
func (s *Scheduler) LoadAndArm(ctx context.Context, repo execstore.AutomationRepository, pluginID string) error {
	automations, err := repo.ListEnabledCron(ctx)
	if err != nil {
		return fmt.Errorf("schedule: loading enabled cron automations: %w", err)
	}
	for _, a := range automations {
		var cfg cronTriggerConfig
		if err := json.Unmarshal(a.TriggerConfig, &cfg); err != nil {
			s.logger.Warn("schedule: skipping automation with unparseable trigger config", "automationId", a.ID, "error", err)
			continue
		}
		if err := s.ScheduleAutomation(a.ID, pluginID, cfg.CronExpression, cfg.Timezone); err != nil {
			s.logger.Warn("schedule: failed to re-arm automation at startup", "automationId", a.ID, "error", err)
		}
	}
	return nil
}
