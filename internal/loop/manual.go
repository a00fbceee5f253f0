package loop

import (
	"sort"
	"time"
)

// Manual is a loop driven by its caller. Time only moves in Advance, posted
// callbacks only run in Drain, Advance or Frame, and frames only flush in
// Frame. It is not safe for concurrent use.
type Manual struct {
	now    time.Time
	seq    uint64
	queue  []func()
	timers []*manualTimer
	frames []func()
}

// NewManual returns a manual loop whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time { return m.now }

// Post queues fn.
func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// AfterFunc registers fn to run when the virtual clock reaches now+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	t := &manualTimer{owner: m, due: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)

	return t
}

// RequestFrame queues fn for the next Frame call.
func (m *Manual) RequestFrame(fn func()) {
	m.frames = append(m.frames, fn)
}

// Drain runs queued callbacks, including ones they post, until the queue is
// empty.
func (m *Manual) Drain() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in order of their
// deadline and draining the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)

	m.Drain()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}

		m.remove(t)
		m.now = t.due
		t.fn()
		m.Drain()
	}

	m.now = target
}

// Frame drains the queue and flushes all pending frame callbacks. It reports
// how many callbacks ran.
func (m *Manual) Frame() int {
	m.Drain()

	frames := m.frames
	m.frames = nil

	for _, fn := range frames {
		fn()
	}

	m.Drain()

	return len(frames)
}

// PendingTimers reports the number of armed timers.
func (m *Manual) PendingTimers() int {
	return len(m.timers)
}

// PendingFrames reports the number of callbacks waiting for a frame.
func (m *Manual) PendingFrames() int {
	return len(m.frames)
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due.Equal(m.timers[j].due) {
			return m.timers[i].seq < m.timers[j].seq
		}

		return m.timers[i].due.Before(m.timers[j].due)
	})

	if m.timers[0].due.After(target) {
		return nil
	}

	return m.timers[0]
}

func (m *Manual) remove(t *manualTimer) bool {
	for i, c := range m.timers {
		if c == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}

	return false
}

type manualTimer struct {
	owner *Manual
	due   time.Time
	seq   uint64
	fn    func()
}

func (t *manualTimer) Stop() bool {
	return t.owner.remove(t)
}
