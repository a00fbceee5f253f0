package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events into a single callback invocation per
// key. Only the last event for a key within the configured interval triggers
// the callback.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timers   map[string]*time.Timer
	callback func(key string)
	logger   *slog.Logger
}

// NewDebouncer creates a debouncer that waits for interval of quiet on a key
// before firing callback with that key.
func NewDebouncer(interval time.Duration, callback func(key string)) *Debouncer {
	return &Debouncer{
		interval: interval,
		timers:   make(map[string]*time.Timer),
		callback: callback,
		logger:   slog.Default(),
	}
}

// Trigger records an event for key. If no further event for the same key
// arrives within the debounce interval, the callback fires.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.interval, func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("debouncer callback panicked", slog.Any("error", r))
			}
		}()

		d.mu.Lock()
		current := d.timers[key] == timer
		if current {
			delete(d.timers, key)
		}
		d.mu.Unlock()

		if current {
			d.callback(key)
		}
	})

	d.timers[key] = timer
}

// Stop cancels all pending callbacks.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
