// Package runner sequences sensor tests across repeated non-blocking calls.
// Each Tick performs at most one sensor's bus-bounded work so the scheduler
// loop stays responsive between tests.
package runner

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/sensor"
)

// State is the orchestrator's lifecycle position.
type State uint8

const (
	// StateIdle means no test is in progress and no results are held.
	StateIdle State = 0
	// StateRunning means a test sequence is advancing tick by tick.
	StateRunning State = 1
	// StateComplete means results are ready for one retrieval.
	StateComplete State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

type mode uint8

const (
	modeAll mode = iota
	modeSingle
)

// Clock supplies millisecond timestamps (system uptime or wall clock).
type Clock func() uint32

// Runner is the asynchronous test orchestrator. All state is owned here and
// mutated only by its entry points; the single scheduler goroutine is the
// only caller, so no locking is involved.
type Runner struct {
	reg   *sensor.Registry
	clock Clock
	log   zerolog.Logger

	state  State
	mode   mode
	single sensor.ID
	cursor int
	report Report
}

func New(reg *sensor.Registry, clock Clock, log zerolog.Logger) *Runner {
	return &Runner{reg: reg, clock: clock, log: log}
}

// StartAll begins an all-sensors run. It reports false without side effects
// when a run is already in progress or results are pending retrieval.
func (r *Runner) StartAll() bool {
	if r.state != StateIdle {
		return false
	}
	r.report.reset()
	r.report.SensorCount = uint8(r.reg.Count())
	r.report.Timestamp = r.clock()
	r.mode = modeAll
	r.cursor = 0
	r.state = StateRunning
	r.log.Debug().Int("sensors", r.reg.Count()).Msg("test run started")
	return true
}

// StartSingle begins a one-sensor run. Unknown ids fail without starting.
func (r *Runner) StartSingle(id sensor.ID) bool {
	if r.state != StateIdle {
		return false
	}
	if !r.reg.IsValidID(id) {
		return false
	}
	r.report.reset()
	r.report.SensorCount = 1
	r.report.Timestamp = r.clock()
	r.mode = modeSingle
	r.single = id
	r.cursor = 0
	r.state = StateRunning
	r.log.Debug().Uint8("sensor", uint8(id)).Msg("single test started")
	return true
}

// Tick advances the run by exactly one sensor test. It is a no-op outside
// StateRunning. The one test it performs may block up to the driver's bus
// timeout; callers budget for that, not for zero latency.
func (r *Runner) Tick() {
	if r.state != StateRunning {
		return
	}

	switch r.mode {
	case modeAll:
		d, ok := r.reg.ByIndex(r.cursor)
		if ok {
			r.testOne(d)
		}
		r.cursor++
		if r.cursor >= r.reg.Count() {
			r.state = StateComplete
		}
	case modeSingle:
		if d, ok := r.reg.ByID(r.single); ok {
			r.testOne(d)
		} else {
			r.report.add(Entry{ID: r.single, Status: sensor.StatusNotTested})
		}
		r.state = StateComplete
	}

	if r.state == StateComplete {
		r.log.Debug().
			Uint8("pass", r.report.PassCount).
			Uint8("fail", r.report.FailCount).
			Msg("test run complete")
	}
}

func (r *Runner) testOne(d sensor.Driver) {
	status, result := d.RunTest()
	r.report.add(Entry{ID: d.ID(), Status: status, Result: result})
}

// State returns the current lifecycle position.
func (r *Runner) State() State {
	return r.state
}

// IsBusy reports whether a run is in progress.
func (r *Runner) IsBusy() bool {
	return r.state == StateRunning
}

// Report hands out the completed report exactly once. Retrieval resets the
// orchestrator to StateIdle, so a second call fails rather than re-reading
// stale results.
func (r *Runner) Report() (Report, bool) {
	if r.state != StateComplete {
		return Report{}, false
	}
	out := r.report
	r.report.reset()
	r.state = StateIdle
	return out, true
}

// Cancel forces StateIdle from any state, discarding in-progress results.
// It cannot abort a bus transaction already in flight; it only prevents
// further ticks from starting new ones.
func (r *Runner) Cancel() {
	if r.state != StateIdle {
		r.log.Debug().Str("state", r.state.String()).Msg("test run cancelled")
	}
	r.report.reset()
	r.cursor = 0
	r.state = StateIdle
}
