package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
	"github.com/beacon-library/beacon-agent/internal/utils"
)

// PathResolver maps queue coordinates back to the local filesystem.
type PathResolver interface {
	AbsPath(libraryID, relPath string) (string, bool)
}

// QueueWorker is the single goroutine that drains the change queue. It
// blocks on the queue's wake channel between drains and arms a timer for
// the earliest backed-off item, so retries fire without a filesystem nudge.
type QueueWorker struct {
	queue  *ChangeQueue
	store  *SyncStore
	remote RemoteLibrary
	paths  PathResolver
	locks  *KeyedMutex
	status *statusTracker

	paused  atomic.Bool
	started atomic.Bool
	done    chan struct{}
}

func NewQueueWorker(queue *ChangeQueue, store *SyncStore, remote RemoteLibrary, paths PathResolver, locks *KeyedMutex, status *statusTracker) *QueueWorker {
	return &QueueWorker{
		queue:  queue,
		store:  store,
		remote: remote,
		paths:  paths,
		locks:  locks,
		status: status,
		done:   make(chan struct{}),
	}
}

func (w *QueueWorker) Start(ctx context.Context) {
	w.started.Store(true)
	go w.run(ctx)
}

// Wait blocks until the worker goroutine has exited. It returns right away
// when the worker never started, so shutdown after a failed startup does
// not hang on a channel nobody closes.
func (w *QueueWorker) Wait() {
	if !w.started.Load() {
		return
	}
	<-w.done
}

// Pause stops dispatching after the in-flight item finishes. Queued items
// stay persisted and resume in order.
func (w *QueueWorker) Pause() {
	w.paused.Store(true)
}

func (w *QueueWorker) Resume() {
	w.paused.Store(false)
	w.queue.notify()
}

func (w *QueueWorker) IsPaused() bool {
	return w.paused.Load()
}

func (w *QueueWorker) run(ctx context.Context) {
	defer close(w.done)

	retry := time.NewTimer(time.Hour)
	stopTimer(retry)
	defer retry.Stop()

	for {
		w.drain(ctx)

		if next, ok, err := w.store.EarliestNotBefore(time.Now()); err == nil && ok {
			stopTimer(retry)
			retry.Reset(time.Until(next))
		}

		select {
		case <-ctx.Done():
			return
		case <-w.queue.Wake():
		case <-retry.C:
		}
	}
}

func (w *QueueWorker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil || w.paused.Load() {
			return
		}

		item, err := w.store.NextReady(time.Now())
		if err != nil {
			slog.Error("queue read failed", "error", err)
			return
		}
		if item == nil {
			return
		}

		w.process(ctx, item)
	}
}

func (w *QueueWorker) process(ctx context.Context, item *QueueItem) {
	if err := w.store.MarkSyncing(item.ID); err != nil {
		slog.Error("queue update failed", "id", item.ID, "error", err)
		return
	}
	w.status.setCurrent(item.RelPath)
	defer w.status.setCurrent("")

	err := w.dispatch(ctx, item)
	if err == nil {
		if err := w.store.Remove(item.ID); err != nil {
			slog.Error("queue remove failed", "id", item.ID, "error", err)
		}
		slog.Debug("change synced", "event", item.Event, "path", item.RelPath)
		return
	}

	if ctx.Err() != nil {
		// shutdown, not a real failure; the item keeps its attempt count
		if reqErr := w.store.Requeue(item.ID); reqErr != nil {
			slog.Error("queue requeue failed", "id", item.ID, "error", reqErr)
		}
		return
	}

	item.Retries++
	if item.Retries >= maxAttempts {
		slog.Error("change failed permanently",
			"event", item.Event, "path", item.RelPath, "attempts", item.Retries, "error", err)
		if markErr := w.store.MarkFailed(item.ID, item.Retries, err.Error()); markErr != nil {
			slog.Error("queue update failed", "id", item.ID, "error", markErr)
		}
		return
	}

	delay := backoffDelay(item.Retries)
	slog.Warn("change failed, will retry",
		"event", item.Event, "path", item.RelPath, "attempt", item.Retries, "retryIn", delay, "error", err)
	if markErr := w.store.MarkRetry(item.ID, item.Retries, time.Now().Add(delay), err.Error()); markErr != nil {
		slog.Error("queue update failed", "id", item.ID, "error", markErr)
	}
}

func (w *QueueWorker) dispatch(ctx context.Context, item *QueueItem) error {
	unlock := w.locks.Lock(TransferKey(item.LibraryID, item.RelPath))
	defer unlock()

	switch item.Event {
	case EventAdd, EventChange:
		absPath, ok := w.paths.AbsPath(item.LibraryID, item.RelPath)
		if !ok {
			return fmt.Errorf("no local folder for library %s", item.LibraryID)
		}
		if !utils.FileExists(absPath) {
			// the file vanished between the event and now; nothing to send
			return nil
		}

		meta, err := w.remote.Upload(ctx, item.LibraryID, item.RelPath, absPath, beaconsdk.OnDuplicateOverwrite)
		if err != nil {
			return err
		}
		// align mtime with the server so reconciliation sees the pair in sync
		_ = os.Chtimes(absPath, meta.UpdatedAt, meta.UpdatedAt)
		return nil

	case EventUnlink:
		err := w.remote.DeleteFile(ctx, item.LibraryID, item.RelPath)
		if errors.Is(err, beaconsdk.ErrFileNotFound) {
			return nil
		}
		return err
	}

	return fmt.Errorf("unknown event %q", item.Event)
}

func backoffDelay(retries int) time.Duration {
	return retryBackoffBase << (retries - 1)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
