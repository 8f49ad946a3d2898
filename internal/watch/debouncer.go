package watch

import (
	"sync"
	"time"
)

// Debouncer delays a callback per key until the key has been quiet for the
// configured delay. Triggering a key again restarts its timer and replaces
// the pending callback.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]func()
	gen     map[string]uint64
	seq     uint64
	stopped bool
	running sync.WaitGroup
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]func()),
		gen:     make(map[string]uint64),
	}
}

// Trigger schedules fn for key, replacing any callback still pending for it.
// It is a no-op after Stop.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending[key] = fn
	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}
	d.seq++
	gen := d.seq
	d.gen[key] = gen
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.fire(key, gen)
	})
}

// fire runs key's callback unless a later Trigger superseded timer gen.
func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	if d.gen[key] != gen {
		d.mu.Unlock()
		return
	}
	delete(d.gen, key)
	fn := d.pending[key]
	delete(d.pending, key)
	delete(d.timers, key)
	if d.stopped || fn == nil {
		d.mu.Unlock()
		return
	}
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	fn()
}

// Cancel drops the pending callback for key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.timers[key]; ok {
		timer.Stop()
		delete(d.timers, key)
	}
	delete(d.pending, key)
	delete(d.gen, key)
}

// Flush runs every pending callback now, in no particular order.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.pending))
	for key, fn := range d.pending {
		if timer, ok := d.timers[key]; ok {
			timer.Stop()
		}
		fns = append(fns, fn)
	}
	d.timers = make(map[string]*time.Timer)
	d.pending = make(map[string]func())
	d.gen = make(map[string]uint64)
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Pending returns the number of keys waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending callback and waits for callbacks already
// running. Calling Stop more than once is safe.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for _, timer := range d.timers {
		timer.Stop()
	}
	d.timers = make(map[string]*time.Timer)
	d.pending = make(map[string]func())
	d.gen = make(map[string]uint64)
	d.mu.Unlock()

	d.running.Wait()
}
