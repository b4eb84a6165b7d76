// Package schedule owns cron-triggered automations: a per-automation
// timer state machine (idle/armed/firing/cooling), per-plugin callback
// registration, and the pure cron-expression validator, following the
// teacher's own use of github.com/robfig/cron/v3 in its scheduling layer.
package schedule

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// State is one point in a Scheduled Job's lifecycle (§4.F).
type State string

const (
	StateIdle    State = "idle"
	StateArmed   State = "armed"
	StateFiring  State = "firing"
	StateCooling State = "cooling"
)

// FireFunc is a plugin's execution callback: given the automation and
// execution identifiers and the tick time, it must create the execution
// record, run the workflow, complete the record, and update run
// counters. The scheduler never touches persistence itself (§4.F).
type FireFunc func(automationID, executionID string, tickAt time.Time)

// job is one automation's live timer state.
type job struct {
	automationID string
	pluginID     string
	schedule     cron.Schedule
	timezone     *time.Location
	callback     FireFunc

	mu     sync.Mutex
	state  State
	timer  *time.Timer
	cancel chan struct{}
}

func (j *job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *job) getState() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// defaultParser accepts five- or six-field cron expressions (seconds
// optional), per §4.F clock grammar.
var defaultParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)
