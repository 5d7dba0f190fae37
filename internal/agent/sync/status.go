package sync

import (
	"sync"
	"time"
)

// statusTracker holds the mutable bits of the status view. Queue counts are
// read from the store at snapshot time instead of being mirrored here.
type statusTracker struct {
	mu       sync.Mutex
	running  bool
	paused   bool
	lastSync time.Time
	current  string
}

func (t *statusTracker) setRunning(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = v
}

func (t *statusTracker) setPaused(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = v
}

func (t *statusTracker) setCurrent(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = path
}

func (t *statusTracker) markSynced(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSync = at
}

func (t *statusTracker) snapshot(pending, errored int) SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	return SyncStatus{
		IsRunning:    t.running,
		IsPaused:     t.paused,
		LastSync:     t.lastSync,
		PendingItems: pending,
		ErrorItems:   errored,
		CurrentItem:  t.current,
	}
}
