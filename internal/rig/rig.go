// Package rig runs the cooperative scheduler that keeps the rig's three
// concerns advancing: the protocol session, the test orchestrator, and the
// hardware watchdog. One goroutine owns all mutable state; the packages
// underneath are written for single-caller use and stay lock-free.
package rig

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/protocol/session"
	"github.com/danmuck/rigctl/internal/runner"
)

// Watchdog is refreshed once per scheduler pass. A pass that wedges on a
// bus transaction past the hardware window resets the rig, which is the
// intended recovery path.
type Watchdog func()

type Scheduler struct {
	session  *session.Session
	runner   *runner.Runner
	interval time.Duration
	watchdog Watchdog
	log      zerolog.Logger
}

func NewScheduler(s *session.Session, r *runner.Runner, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		session:  s,
		runner:   r,
		interval: interval,
		log:      log,
	}
}

// SetWatchdog attaches the refresh hook. Without one the scheduler simply
// skips the refresh step.
func (s *Scheduler) SetWatchdog(w Watchdog) {
	s.watchdog = w
}

// Run drives the loop until the context is cancelled. Each pass services
// the serial link first so command responses stay ahead of test work, then
// advances the orchestrator by at most one sensor.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step performs one scheduler pass.
func (s *Scheduler) Step() {
	s.session.Tick()
	s.runner.Tick()
	if s.watchdog != nil {
		s.watchdog()
	}
}
