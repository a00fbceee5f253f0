// Package schedule coalesces bursts of change notifications into bounded-rate
// feed scans.
//
// The scheduler is a two-state machine:
//
//	Idle    --Notify-->  Pending (debounce timer armed)
//	Pending --Notify-->  Pending (timer re-armed)
//	Pending --fire---->  Idle    (non-forced scan)
//	any     --Force--->  Idle    (timer cleared, forced scan)
//
// All methods must be called from the loop the scheduler was created on.
package schedule

import (
	"log/slog"
	"time"

	"github.com/hupe1980/feedsieve/internal/logging"
	"github.com/hupe1980/feedsieve/internal/loop"
)

// DebounceDelay is the quiet period after the last notification before a
// scan runs.
const DebounceDelay = 300 * time.Millisecond

// Reason names what triggered a scan.
type Reason string

// Trigger reasons.
const (
	ReasonMutation   Reason = "mutation"
	ReasonNavigation Reason = "navigation"
	ReasonTick       Reason = "tick"
	ReasonRules      Reason = "rules"
	ReasonActivation Reason = "activation"
)

// State is the scheduler's position in its state machine.
type State int

// Scheduler states.
const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}

	return "idle"
}

// ScanFunc performs one scan.
type ScanFunc func(reason Reason, force bool)

// Options configures a Scheduler.
type Options struct {
	// Delay overrides DebounceDelay when positive.
	Delay time.Duration
	// Gate, when set, must report true for notifications to be accepted.
	// Forced scans ignore it.
	Gate   func() bool
	Logger *slog.Logger
}

// Scheduler debounces notifications into scans.
type Scheduler struct {
	loop   loop.Loop
	delay  time.Duration
	scan   ScanFunc
	gate   func() bool
	logger *slog.Logger

	state   State
	timer   loop.Timer
	reason  Reason
	stopped bool
}

// New creates an idle scheduler that runs scan on l.
func New(l loop.Loop, scan ScanFunc, opts Options) *Scheduler {
	delay := opts.Delay
	if delay <= 0 {
		delay = DebounceDelay
	}

	return &Scheduler{
		loop:   l,
		delay:  delay,
		scan:   scan,
		gate:   opts.Gate,
		logger: logging.Component(opts.Logger, "scheduler"),
	}
}

// State returns the current state.
func (s *Scheduler) State() State { return s.state }

// Notify records a change notification. Only the last notification of a
// burst leads to a scan.
func (s *Scheduler) Notify(reason Reason) {
	if s.stopped {
		return
	}

	if s.gate != nil && !s.gate() {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}

	s.reason = reason
	s.state = Pending

	var timer loop.Timer
	timer = s.loop.AfterFunc(s.delay, func() {
		if s.timer != timer {
			return
		}

		s.fire()
	})
	s.timer = timer
}

// Force clears any pending scan and runs a forced scan immediately.
func (s *Scheduler) Force(reason Reason) {
	if s.stopped {
		return
	}

	s.cancel()
	s.logger.Debug("forced scan", slog.String("reason", string(reason)))
	s.scan(reason, true)
}

// Cancel discards a pending scan without running one.
func (s *Scheduler) Cancel() {
	s.cancel()
}

// Stop discards a pending scan and ignores all further calls.
func (s *Scheduler) Stop() {
	s.cancel()
	s.stopped = true
}

func (s *Scheduler) fire() {
	reason := s.reason
	s.timer = nil
	s.state = Idle

	s.logger.Debug("debounced scan", slog.String("reason", string(reason)))
	s.scan(reason, false)
}

func (s *Scheduler) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.state = Idle
}
