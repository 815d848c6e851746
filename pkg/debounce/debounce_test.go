package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerRunsOnlyLastTrigger(t *testing.T) {
	d := New(20 * time.Millisecond)
	var last int32
	var runs int32
	done := make(chan struct{})

	for i := int32(1); i <= 5; i++ {
		v := i
		d.Trigger(func() {
			atomic.StoreInt32(&last, v)
			if atomic.AddInt32(&runs, 1) == 1 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(5), atomic.LoadInt32(&last))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := New(20 * time.Millisecond)
	var runs int32
	d.Trigger(func() { atomic.AddInt32(&runs, 1) })

	require.True(t, d.Stop())
	assert.False(t, d.Stop())
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&runs))
}

func TestNewFallsBackToDefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, New(0).Window())
	assert.Equal(t, 500*time.Millisecond, DefaultWindow)
}
