package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTimerFiresOnce(t *testing.T) {
	var mu sync.Mutex
	var expired []string
	timer := NewSessionTimer(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, id)
	})
	defer timer.Stop()

	timer.Schedule("a", time.Now().Add(20*time.Millisecond))
	timer.Schedule("a", time.Now().Add(30*time.Millisecond))
	assert.True(t, timer.Scheduled("a"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(expired) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a"}, expired)
	mu.Unlock()
	assert.False(t, timer.Scheduled("a"))
}

func TestSessionTimerCancel(t *testing.T) {
	fired := make(chan string, 1)
	timer := NewSessionTimer(func(id string) { fired <- id })
	defer timer.Stop()

	timer.Schedule("b", time.Now().Add(20*time.Millisecond))
	timer.Cancel("b")
	assert.False(t, timer.Scheduled("b"))

	select {
	case id := <-fired:
		t.Fatalf("cancelled timer fired for %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionTimerRemaining(t *testing.T) {
	timer := NewSessionTimer(nil)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	timer.now = clockAt(now)
	assert.Equal(t, int64(90), timer.Remaining(now.Add(90*time.Second+500*time.Millisecond)))
	assert.Zero(t, timer.Remaining(now.Add(-time.Second)))
}
