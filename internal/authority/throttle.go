package authority

import (
	"sync"
	"time"
)

// throttle places a temporary lock on a transmitter after repeated failed
// logins. In-memory; the simulated authority is the only consumer.
type throttle struct {
	mu        sync.Mutex
	window    time.Duration
	maxFails  int
	lockFor   time.Duration
	failures  map[string][]time.Time
	lockedTil map[string]time.Time
	now       func() time.Time
}

func newThrottle(window time.Duration, maxFails int, lockFor time.Duration) *throttle {
	return &throttle{
		window:    window,
		maxFails:  maxFails,
		lockFor:   lockFor,
		failures:  make(map[string][]time.Time),
		lockedTil: make(map[string]time.Time),
		now:       time.Now,
	}
}

// allow reports whether login attempts are currently permitted.
func (t *throttle) allow(etin string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if til, ok := t.lockedTil[etin]; ok {
		if left := til.Sub(t.now()); left > 0 {
			return false, left
		}
		delete(t.lockedTil, etin)
		delete(t.failures, etin)
	}
	return true, 0
}

// failure records a failed attempt; returns true when the lock engages.
func (t *throttle) failure(etin string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	cutoff := now.Add(-t.window)
	kept := t.failures[etin][:0]
	for _, ts := range t.failures[etin] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	t.failures[etin] = kept
	if len(kept) >= t.maxFails {
		t.lockedTil[etin] = now.Add(t.lockFor)
		return true
	}
	return false
}

// success clears counters after a successful login.
func (t *throttle) success(etin string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, etin)
	delete(t.lockedTil, etin)
}
