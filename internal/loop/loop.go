// Package loop provides the cooperative execution model of the engine: every
// callback runs to completion on a single goroutine, in FIFO order, and
// suspends only at timers and frame boundaries.
//
// Two implementations exist. [EventLoop] is driven by wall-clock timers and
// is used by long-running commands. [Manual] advances a virtual clock on
// demand and is used by tests and one-shot runs.
package loop

import (
	"time"
)

// Clock reports the current time of a loop.
type Clock interface {
	Now() time.Time
}

// Timer is a handle to a pending callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// call stopped a timer that had not yet fired.
	Stop() bool
}

// FrameRequester defers work to the next paint boundary.
type FrameRequester interface {
	RequestFrame(fn func())
}

// Loop is the scheduling surface the engine components depend on.
type Loop interface {
	Clock
	FrameRequester

	// Post queues fn to run after the callbacks already queued.
	Post(fn func())

	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Every runs fn on l every d until the returned timer is stopped. The next
// tick is armed before fn runs, so a slow callback does not drift the period.
func Every(l Loop, d time.Duration, fn func()) Timer {
	t := &ticker{}

	var arm func()
	arm = func() {
		t.current = l.AfterFunc(d, func() {
			if t.stopped {
				return
			}

			arm()
			fn()
		})
	}

	arm()

	return t
}

type ticker struct {
	current Timer
	stopped bool
}

func (t *ticker) Stop() bool {
	if t.stopped {
		return false
	}

	t.stopped = true

	if t.current != nil {
		t.current.Stop()
	}

	return true
}
