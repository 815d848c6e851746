package service

import (
	"sync"
	"time"
)

// SessionTimer clears persisted auth states when their token expires.
type SessionTimer struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	onExpire func(stateID string)
	now      func() time.Time
}

// NewSessionTimer constructs a timer calling onExpire with the expired state id.
func NewSessionTimer(onExpire func(stateID string)) *SessionTimer {
	return &SessionTimer{timers: make(map[string]*time.Timer), onExpire: onExpire, now: time.Now}
}

// Schedule arms (or re-arms) the expiry of a state.
func (t *SessionTimer) Schedule(stateID string, expiresAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.timers[stateID]; ok {
		existing.Stop()
	}
	delay := expiresAt.Sub(t.now())
	if delay < 0 {
		delay = 0
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		current := t.timers[stateID] == timer
		if current {
			delete(t.timers, stateID)
		}
		t.mu.Unlock()
		if current && t.onExpire != nil {
			t.onExpire(stateID)
		}
	})
	t.timers[stateID] = timer
}

// Scheduled reports whether a state has an armed timer.
func (t *SessionTimer) Scheduled(stateID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[stateID]
	return ok
}

// Cancel disarms the timer of a state.
func (t *SessionTimer) Cancel(stateID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[stateID]; ok {
		timer.Stop()
		delete(t.timers, stateID)
	}
}

// Remaining returns the whole seconds left until expiresAt, never negative.
func (t *SessionTimer) Remaining(expiresAt time.Time) int64 {
	left := expiresAt.Sub(t.now())
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}

// Stop disarms every timer; used on shutdown.
func (t *SessionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
