package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Manual
// ---------------------------------------------------------------------------

func TestManual_TimersFireInDeadlineOrder(t *testing.T) {
	m := NewManual(epoch)

	var order []string

	m.AfterFunc(30*time.Millisecond, func() { order = append(order, "c") })
	m.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(20*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(25*time.Millisecond), m.Now())

	m.Advance(5 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Zero(t, m.PendingTimers())
}

func TestManual_ClockAtTimerDeadline(t *testing.T) {
	m := NewManual(epoch)

	var seen time.Time

	m.AfterFunc(40*time.Millisecond, func() { seen = m.Now() })
	m.Advance(time.Second)

	assert.Equal(t, epoch.Add(40*time.Millisecond), seen)
}

func TestManual_StoppedTimerDoesNotFire(t *testing.T) {
	m := NewManual(epoch)

	fired := false
	timer := m.AfterFunc(10*time.Millisecond, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.Advance(time.Second)
	assert.False(t, fired)
}

func TestManual_FrameFlushesInOrder(t *testing.T) {
	m := NewManual(epoch)

	var order []int

	m.RequestFrame(func() { order = append(order, 1) })
	m.RequestFrame(func() { order = append(order, 2) })

	assert.Equal(t, 2, m.PendingFrames())
	assert.Empty(t, order)

	assert.Equal(t, 2, m.Frame())
	assert.Equal(t, []int{1, 2}, order)
	assert.Zero(t, m.Frame())
}

func TestManual_PostedCallbacksRunBeforeTimers(t *testing.T) {
	m := NewManual(epoch)

	var order []string

	m.AfterFunc(0, func() { order = append(order, "timer") })
	m.Post(func() { order = append(order, "post") })

	m.Advance(0)
	assert.Equal(t, []string{"post", "timer"}, order)
}

func TestEvery_Manual(t *testing.T) {
	m := NewManual(epoch)

	ticks := 0
	ticker := Every(m, 100*time.Millisecond, func() { ticks++ })

	m.Advance(350 * time.Millisecond)
	assert.Equal(t, 3, ticks)

	assert.True(t, ticker.Stop())
	m.Advance(time.Second)
	assert.Equal(t, 3, ticks)
	assert.Zero(t, m.PendingTimers())
}

// ---------------------------------------------------------------------------
// EventLoop
// ---------------------------------------------------------------------------

func TestEventLoop_RunsPostedCallbacks(t *testing.T) {
	l := NewEventLoop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})

	go func() { _ = l.Run(ctx) }()

	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted callback did not run")
	}
}

func TestEventLoop_StoppedTimerDoesNotFire(t *testing.T) {
	l := NewEventLoop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = l.Run(ctx) }()

	var fired atomic.Int32

	timer := l.AfterFunc(20*time.Millisecond, func() { fired.Add(1) })
	timer.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestEventLoop_FrameBatchesAndHooks(t *testing.T) {
	var hooks atomic.Int32

	l := NewEventLoop(
		WithFrameInterval(5*time.Millisecond),
		WithAfterFrame(func() { hooks.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = l.Run(ctx) }()

	var ran atomic.Int32

	done := make(chan struct{})

	l.Post(func() {
		l.RequestFrame(func() { ran.Add(1) })
		l.RequestFrame(func() {
			ran.Add(1)
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("frame did not flush")
	}

	require.Eventually(t, func() bool { return hooks.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), ran.Load())
}

func TestEventLoop_RecoversPanics(t *testing.T) {
	l := NewEventLoop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = l.Run(ctx) }()

	done := make(chan struct{})

	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after panic")
	}
}
