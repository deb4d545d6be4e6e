package socketio

import (
	"sync"
	"time"
)

// PushDebouncer collapses bursts of change events into a single push. The
// callback fires once the window elapses without another Trigger.
type PushDebouncer struct {
	window   time.Duration
	callback func()

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
	stopped bool
}

// NewPushDebouncer creates a debouncer with the given window duration.
func NewPushDebouncer(window time.Duration, callback func()) *PushDebouncer {
	return &PushDebouncer{
		window:   window,
		callback: callback,
	}
}

// Trigger schedules a push, restarting the window.
func (d *PushDebouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *PushDebouncer) flush() {
	d.mu.Lock()
	fire := d.pending && !d.stopped
	d.pending = false
	d.mu.Unlock()

	if fire && d.callback != nil {
		d.callback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *PushDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
