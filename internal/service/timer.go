package service

import (
	"sync"
	"time"
)

// TimerRegistry tracks one cancellable countdown per active attempt.
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{timers: make(map[string]*time.Timer)}
}

// Schedule arms the countdown for an attempt, replacing any existing one.
// A non-positive duration fires immediately.
func (r *TimerRegistry) Schedule(attemptID string, d time.Duration, fire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[attemptID]; ok {
		t.Stop()
	}
	r.timers[attemptID] = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, attemptID)
		r.mu.Unlock()
		fire()
	})
}

// Cancel disarms the countdown. Cancelling an unknown or already-fired
// timer is a no-op.
func (r *TimerRegistry) Cancel(attemptID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[attemptID]; ok {
		t.Stop()
		delete(r.timers, attemptID)
	}
}

// Stop disarms every countdown, for shutdown.
func (r *TimerRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// Active returns the number of armed countdowns.
func (r *TimerRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
