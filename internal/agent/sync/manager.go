package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/beacon-library/beacon-agent/internal/agent/config"
	"github.com/beacon-library/beacon-agent/internal/agent/workspace"
	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
	"github.com/beacon-library/beacon-agent/internal/utils"
)

const storeFileName = "sync.db"

var (
	ErrSyncAlreadyRunning = errors.New("sync already running")
	ErrSyncPaused         = errors.New("sync is paused")
)

// Manager owns the whole engine: watcher, queue, worker, reconciler, and
// conflict resolution. All state hangs off this struct; two managers over
// different sync folders can coexist in one process.
type Manager struct {
	cfg      *config.Config
	ws       *workspace.Workspace
	sdk      *beaconsdk.BeaconSDK
	remote   RemoteLibrary
	store    *SyncStore
	queue    *ChangeQueue
	worker   *QueueWorker
	recon    *Reconciler
	resolver *Resolver
	watcher  *FileWatcher
	status   *statusTracker

	// muSync admits one reconciliation pass at a time; overlapping triggers
	// (timer, SSE nudge, manual) collapse into ErrSyncAlreadyRunning
	muSync sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg *config.Config, ws *workspace.Workspace, sdk *beaconsdk.BeaconSDK) (*Manager, error) {
	store, err := NewSyncStore(filepath.Join(ws.MetadataDir, storeFileName))
	if err != nil {
		return nil, err
	}

	ignore := NewSyncIgnoreList(ws.Root)
	locks := NewKeyedMutex()
	remote := NewSDKRemote(sdk)

	m := &Manager{
		cfg:      cfg,
		ws:       ws,
		sdk:      sdk,
		remote:   remote,
		store:    store,
		queue:    NewChangeQueue(store),
		recon:    NewReconciler(remote, NewScanner(ignore), ws, store, locks),
		resolver: NewResolver(store, remote, locks),
		watcher:  NewFileWatcher(ws.Root, ignore),
		status:   &statusTracker{},
	}
	m.worker = NewQueueWorker(m.queue, store, remote, m, locks, m.status)

	return m, nil
}

// AbsPath implements PathResolver for the worker.
func (m *Manager) AbsPath(libraryID, relPath string) (string, bool) {
	for _, lib := range m.cfg.Libraries {
		if lib.ID == libraryID {
			return m.ws.AbsPath(lib.Name, relPath), true
		}
	}
	return "", false
}

func (m *Manager) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	// every library folder must exist before the recursive watch starts
	for _, lib := range m.cfg.Libraries {
		if err := utils.EnsureDir(m.ws.LibraryDir(lib.Name)); err != nil {
			return fmt.Errorf("create library folder %q: %w", lib.Name, err)
		}
	}

	if err := m.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	m.worker.Start(ctx)

	for _, lib := range m.cfg.Libraries {
		if err := m.sdk.Events.Connect(ctx, lib.ID); err != nil {
			slog.Warn("event stream connect failed", "library", lib.Name, "error", err)
		}
	}

	m.wg.Add(3)
	go m.watchLoop(ctx)
	go m.autoSyncLoop(ctx)
	go m.remoteEventLoop(ctx)

	return nil
}

// Stop shuts the engine down and waits for in-flight work to settle.
func (m *Manager) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.worker.Wait()
	m.sdk.Events.Close()
	return m.store.Close()
}

// RunSync performs one full reconciliation pass over every configured
// library. Only one pass runs at a time.
func (m *Manager) RunSync(ctx context.Context) error {
	if m.worker.IsPaused() {
		return ErrSyncPaused
	}
	if !m.muSync.TryLock() {
		return ErrSyncAlreadyRunning
	}
	defer m.muSync.Unlock()

	m.status.setRunning(true)
	defer m.status.setRunning(false)

	started := time.Now()
	stats := m.recon.ReconcileAll(ctx, m.cfg.Libraries)
	m.status.markSynced(time.Now())

	var downloads, uploads, conflicts int
	for _, s := range stats {
		downloads += s.Downloads
		uploads += s.Uploads
		conflicts += s.Conflicts
	}
	slog.Info("sync pass finished",
		"libraries", len(stats),
		"downloads", downloads,
		"uploads", uploads,
		"conflicts", conflicts,
		"took", time.Since(started).Round(time.Millisecond))

	return ctx.Err()
}

// Pause halts the queue worker and periodic sync after the current item
// finishes. Pending items stay persisted.
func (m *Manager) Pause() {
	m.worker.Pause()
	m.status.setPaused(true)
	slog.Info("sync paused")
}

// Resume continues processing in the original order.
func (m *Manager) Resume() {
	m.status.setPaused(false)
	m.worker.Resume()
	slog.Info("sync resumed")
}

func (m *Manager) Status() SyncStatus {
	pending, errored, err := m.store.Counts()
	if err != nil {
		slog.Error("queue count failed", "error", err)
	}
	return m.status.snapshot(pending, errored)
}

func (m *Manager) Conflicts() ([]*Conflict, error) {
	return m.store.ListConflicts()
}

func (m *Manager) ResolveConflict(ctx context.Context, conflictID string, policy ResolvePolicy) error {
	return m.resolver.Resolve(ctx, conflictID, policy)
}

// watchLoop maps debounced filesystem events to queue items.
func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.watcher.Events():
			m.enqueueChange(ev)
		}
	}
}

func (m *Manager) enqueueChange(ev ChangeEvent) {
	if m.ws.IsMetadataPath(ev.Path) {
		return
	}

	folder, relPath, err := m.ws.SplitPath(ev.Path)
	if err != nil {
		return
	}

	lib, ok := m.cfg.LibraryByFolder(folder)
	if !ok {
		slog.Debug("change outside any library", "path", ev.Path)
		return
	}

	if err := m.queue.Enqueue(lib.ID, relPath, ev.Type); err != nil {
		slog.Error("enqueue failed", "path", ev.Path, "error", err)
		return
	}
	slog.Debug("change queued", "event", ev.Type, "library", lib.Name, "path", relPath)
}

// autoSyncLoop runs the initial pass, then re-runs on the configured
// interval. The timer is re-armed only after a pass completes, so slow
// passes never stack.
func (m *Manager) autoSyncLoop(ctx context.Context) {
	defer m.wg.Done()

	m.runScheduledSync(ctx)

	if !m.cfg.AutoSync {
		return
	}

	interval := time.Duration(m.cfg.SyncInterval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		m.runScheduledSync(ctx)
		timer.Reset(interval)
	}
}

// remoteEventLoop turns SSE change notifications into early sync passes.
func (m *Manager) remoteEventLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.sdk.Events.Events():
			if !ok {
				return
			}
			if !ev.IsFileEvent() {
				continue
			}
			slog.Debug("remote change notified", "type", ev.Type, "library", ev.LibraryID)
			m.runScheduledSync(ctx)
		}
	}
}

func (m *Manager) runScheduledSync(ctx context.Context) {
	err := m.RunSync(ctx)
	if err == nil || errors.Is(err, ErrSyncAlreadyRunning) || errors.Is(err, ErrSyncPaused) || errors.Is(err, context.Canceled) {
		return
	}
	slog.Error("sync pass failed", "error", err)
}
