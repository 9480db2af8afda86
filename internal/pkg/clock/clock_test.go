package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualSleepAdvance(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))

	done := make(chan error, 1)
	go func() {
		done <- v.Sleep(context.Background(), 10*time.Minute)
	}()

	// give the goroutine a chance to register the waiter
	for i := 0; i < 100 && v.PendingWaiters() == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 1, v.PendingWaiters())

	v.Advance(10 * time.Minute)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sleep did not wake after Advance")
	}
}

func TestVirtualSleepCancel(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- v.Sleep(ctx, 10*time.Minute)
	}()

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("sleep did not abort on cancellation")
	}
}

func TestRealSleepZero(t *testing.T) {
	r := NewReal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Sleep(ctx, 0)
	assert.Error(t, err)
}
