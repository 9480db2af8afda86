package queue

import "testing"

func TestBackpressureTripsAtCeilingAndClearsAtHalf(t *testing.T) {
	b := NewBackpressureMonitor(10)

	for i := 0; i < 10; i++ {
		if !b.Allow() {
			t.Fatalf("expected Allow() true before ceiling, at i=%d", i)
		}
		b.Acquire()
	}

	if b.Allow() {
		t.Fatal("expected Allow() false once tripped")
	}

	for i := 0; i < 4; i++ {
		b.Release()
	}
	if b.Allow() {
		t.Fatal("expected Allow() false above half-ceiling hysteresis")
	}

	b.Release()
	if !b.Allow() {
		t.Fatal("expected Allow() true once drained to half ceiling")
	}
}
