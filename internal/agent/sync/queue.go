package sync

import (
	"time"

	"github.com/google/uuid"
)

// ChangeQueue is the submission side of the persisted queue. Enqueue writes
// through to the store and nudges the worker over a buffered channel; a full
// buffer is fine because one pending nudge already guarantees a drain.
type ChangeQueue struct {
	store *SyncStore
	wake  chan struct{}
}

func NewChangeQueue(store *SyncStore) *ChangeQueue {
	return &ChangeQueue{
		store: store,
		wake:  make(chan struct{}, 1),
	}
}

func (q *ChangeQueue) Enqueue(libraryID, relPath string, event EventType) error {
	item := &QueueItem{
		ID:         uuid.NewString(),
		LibraryID:  libraryID,
		RelPath:    relPath,
		Event:      event,
		Status:     StatusPending,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := q.store.Enqueue(item); err != nil {
		return err
	}

	q.notify()
	return nil
}

func (q *ChangeQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wake is the channel the worker blocks on between drains.
func (q *ChangeQueue) Wake() <-chan struct{} {
	return q.wake
}
