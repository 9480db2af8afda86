package queue

import (
	"sync"
)

// BackpressureMonitor gates claim-ahead against an in-flight ceiling with
// hysteresis: it trips at maxInFlight and only clears once in-flight work
// drops to half that, so a runner oscillating near the ceiling doesn't
// thrash start/stop on every single completion. Grounded on the teacher's
// internal/worker/backpressure.go BackpressureMonitor.
type BackpressureMonitor struct {
	mu         sync.Mutex
	maxInFlight int
	inFlight    int
	tripped     bool
}

// NewBackpressureMonitor creates a monitor that trips once inFlight
// reaches maxInFlight.
func NewBackpressureMonitor(maxInFlight int) *BackpressureMonitor {
	return &BackpressureMonitor{maxInFlight: maxInFlight}
}

// Allow reports whether a new claim may proceed. While tripped, it stays
// false until in-flight work has drained to at most half maxInFlight.
func (b *BackpressureMonitor) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tripped {
		if b.inFlight <= b.maxInFlight/2 {
			b.tripped = false
		}
		return !b.tripped
	}
	return b.inFlight < b.maxInFlight
}

// Acquire records a new in-flight item, tripping the monitor if the
// ceiling is reached.
func (b *BackpressureMonitor) Acquire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight++
	if b.inFlight >= b.maxInFlight {
		b.tripped = true
	}
}

// Release marks one in-flight item as complete.
func (b *BackpressureMonitor) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFlight > 0 {
		b.inFlight--
	}
}

// InFlight returns the current in-flight count, for diagnostics.
func (b *BackpressureMonitor) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}
