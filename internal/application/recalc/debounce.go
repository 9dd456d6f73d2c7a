package recalc

import (
	"sync"
	"time"
)

// Debouncer is a cancellable delayed task. Trigger (re)starts the window;
// the function runs once the window expires without another Trigger. It
// replaces the scattered manual timers the UI layers used to manage.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given window.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the window elapses. A Trigger while a
// run is already scheduled restarts the window with the new fn; timers never
// stack.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels the scheduled run, if any. It reports whether a run was
// pending and got cancelled before firing.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
