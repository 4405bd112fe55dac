// Package calltrack tracks in-flight delegation tool calls so the post-tool
// hook can tell when the last implementation call has reported back. Entries
// that never report completion are evicted by age, which bounds the map even
// when the host drops a call on the floor.
package calltrack

import (
	"sync"
	"time"
)

// DefaultTTL is how long an entry may stay in flight before the sweep
// considers it abandoned.
const DefaultTTL = 15 * time.Minute

// Tracker is a bounded map of call id to start time. The clock is injectable
// so tests control time instead of sleeping against real timers.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	ttl     time.Duration
	entries map[string]time.Time
}

// New builds a Tracker. A zero ttl selects DefaultTTL; a nil clock selects
// time.Now.
func New(ttl time.Duration, now func() time.Time) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:     now,
		ttl:     ttl,
		entries: map[string]time.Time{},
	}
}

// Start records a call as in flight. Re-starting a known id refreshes its
// start time.
func (t *Tracker) Start(callID string) {
	if callID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[callID] = t.now()
}

// Finish removes a call and returns how many remain in flight. Finishing an
// unknown or already-evicted id is a no-op.
func (t *Tracker) Finish(callID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, callID)
	return len(t.entries)
}

// InFlight returns the number of tracked calls.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep evicts entries older than the ttl and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.ttl)
	evicted := 0
	for callID, startedAt := range t.entries {
		if startedAt.Before(cutoff) {
			delete(t.entries, callID)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on a background ticker until the returned stop
// function is called. The goroutine holds no resources that would keep the
// process alive beyond its ticker.
func (t *Tracker) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				t.Sweep()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
