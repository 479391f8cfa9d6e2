package store

import (
	"sync"
	"time"
)

// SearchDebounce is the quiet period after the last search keystroke.
const SearchDebounce = 300 * time.Millisecond

// Debouncer runs only the last of a burst of triggers, once Delay has passed
// without a new one.
type Debouncer struct {
	Delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{Delay: delay}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.Delay, fn)
}

// Stop drops a pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
