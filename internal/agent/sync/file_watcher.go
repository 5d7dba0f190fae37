package sync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	// watchDebounce collapses the burst of raw events an editor save or a
	// copy-in produces into one event per path.
	watchDebounce = 300 * time.Millisecond

	watchBufferSize = 256
	eventBufferSize = 64
)

// ChangeEvent is one debounced filesystem mutation, addressed by absolute
// path.
type ChangeEvent struct {
	Path string
	Type EventType
}

type pendingChange struct {
	evType EventType
	timer  *time.Timer
}

// FileWatcher watches the sync root recursively and emits debounced change
// events. It deliberately knows nothing about libraries or the queue; the
// manager maps paths and enqueues.
type FileWatcher struct {
	root   string
	ignore *SyncIgnoreList
	raw    chan notify.EventInfo
	events chan ChangeEvent

	mu      sync.Mutex
	pending map[string]*pendingChange
}

func NewFileWatcher(root string, ignore *SyncIgnoreList) *FileWatcher {
	return &FileWatcher{
		root:    root,
		ignore:  ignore,
		raw:     make(chan notify.EventInfo, watchBufferSize),
		events:  make(chan ChangeEvent, eventBufferSize),
		pending: make(map[string]*pendingChange),
	}
}

func (w *FileWatcher) Start(ctx context.Context) error {
	if err := notify.Watch(filepath.Join(w.root, "..."), w.raw, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Events returns the debounced event channel.
func (w *FileWatcher) Events() <-chan ChangeEvent {
	return w.events
}

func (w *FileWatcher) loop(ctx context.Context) {
	defer notify.Stop(w.raw)

	for {
		select {
		case <-ctx.Done():
			return
		case ei := <-w.raw:
			w.observe(ei)
		}
	}
}

func (w *FileWatcher) observe(ei notify.EventInfo) {
	path := ei.Path()
	if w.ignore.ShouldIgnore(path) {
		return
	}

	evType := classifyEvent(ei.Event())

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.evType = coalesceEvents(p.evType, evType)
		p.timer.Reset(watchDebounce)
		return
	}

	p := &pendingChange{evType: evType}
	p.timer = time.AfterFunc(watchDebounce, func() { w.flush(path) })
	w.pending[path] = p
}

func (w *FileWatcher) flush(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	delete(w.pending, path)
	w.mu.Unlock()

	if !ok {
		return
	}

	// re-stat after the debounce window: the file may be gone by now, and
	// directory events are implied by the files inside them
	evType := p.evType
	info, err := os.Stat(path)
	switch {
	case err != nil:
		evType = EventUnlink
	case info.IsDir():
		return
	}

	select {
	case w.events <- ChangeEvent{Path: path, Type: evType}:
	default:
		// the reconciler catches anything a full buffer drops
		slog.Warn("watcher buffer full, dropping event", "path", path)
	}
}

func classifyEvent(e notify.Event) EventType {
	switch {
	case e&notify.Create != 0:
		return EventAdd
	case e&notify.Write != 0:
		return EventChange
	default:
		return EventUnlink
	}
}

// coalesceEvents folds a burst of raw events for one path into the single
// event the queue should see.
func coalesceEvents(prev, next EventType) EventType {
	if prev == EventAdd && next == EventChange {
		return EventAdd
	}
	return next
}
