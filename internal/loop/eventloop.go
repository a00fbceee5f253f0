package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFrameInterval approximates a 60Hz paint cadence.
const DefaultFrameInterval = 16 * time.Millisecond

// EventLoop runs posted callbacks on the goroutine that called Run.
// Post and AfterFunc are safe to call from any goroutine; all other
// interaction with engine state must happen inside callbacks.
type EventLoop struct {
	frameInterval time.Duration
	afterFrame    func()
	logger        *slog.Logger

	mu         sync.Mutex
	queue      []func()
	frames     []func()
	frameArmed bool
	wake       chan struct{}
}

// Option configures an EventLoop.
type Option func(*EventLoop)

// WithFrameInterval sets the delay between a frame request and the flush.
func WithFrameInterval(d time.Duration) Option {
	return func(l *EventLoop) { l.frameInterval = d }
}

// WithAfterFrame registers a hook that runs on the loop after every frame
// flush.
func WithAfterFrame(fn func()) Option {
	return func(l *EventLoop) { l.afterFrame = fn }
}

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *EventLoop) { l.logger = logger }
}

// NewEventLoop creates a stopped loop. Call Run to start processing.
func NewEventLoop(opts ...Option) *EventLoop {
	l := &EventLoop{
		frameInterval: DefaultFrameInterval,
		logger:        slog.Default(),
		wake:          make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Now returns the wall-clock time.
func (l *EventLoop) Now() time.Time { return time.Now() }

// Post queues fn. It never blocks.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc arms a wall-clock timer that posts fn when it fires.
func (l *EventLoop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &wallTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have raced with the post; the flag is only read here,
			// on the loop, so a stopped timer never runs.
			if t.stopped.Load() {
				return
			}

			fn()
		})
	})

	return t
}

// RequestFrame queues fn for the next frame flush.
func (l *EventLoop) RequestFrame(fn func()) {
	l.mu.Lock()
	l.frames = append(l.frames, fn)
	arm := !l.frameArmed
	l.frameArmed = true
	l.mu.Unlock()

	if arm {
		time.AfterFunc(l.frameInterval, func() { l.Post(l.flushFrames) })
	}
}

// Run processes callbacks until ctx is cancelled. Callbacks still queued at
// that point are dropped.
func (l *EventLoop) Run(ctx context.Context) error {
	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}

			l.invoke(fn)

			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

func (l *EventLoop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}

	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return fn
}

func (l *EventLoop) flushFrames() {
	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.frameArmed = false
	l.mu.Unlock()

	for _, fn := range frames {
		l.invoke(fn)
	}

	if l.afterFrame != nil {
		l.invoke(l.afterFrame)
	}
}

func (l *EventLoop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked", slog.Any("error", r))
		}
	}()

	fn()
}

type wallTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

func (t *wallTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}

	return t.timer.Stop()
}
