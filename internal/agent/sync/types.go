package sync

import (
	"time"
)

const (
	// timestampTolerance absorbs clock skew and filesystem mtime
	// granularity when comparing local mtimes against remote updated_at.
	// It is not a merge strategy: divergence beyond the tolerance always
	// produces a conflict, never a silent overwrite.
	timestampTolerance = 1000 * time.Millisecond

	// maxAttempts is the total number of dispatch attempts for one queue
	// item before it lands in the terminal error state.
	maxAttempts = 3

	// retryBackoffBase is the delay before the first retry; it doubles on
	// every subsequent failure.
	retryBackoffBase = 5 * time.Second
)

// LocalFileInfo is one entry of a local tree snapshot.
type LocalFileInfo struct {
	RelPath string
	Size    int64
	ModTime time.Time
}

// LocalSnapshot maps library-relative paths (slash-separated) to file info.
// Rebuilt fully on every reconciliation pass; never cached.
type LocalSnapshot map[string]*LocalFileInfo

// EventType classifies a filesystem mutation.
type EventType string

const (
	EventAdd    EventType = "add"
	EventChange EventType = "change"
	EventUnlink EventType = "unlink"
)

// ItemStatus is the queue item state machine: pending to syncing, then
// removed on success, back to pending on retry, or error (terminal).
type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusSyncing ItemStatus = "syncing"
	StatusError   ItemStatus = "error"
)

// QueueItem is one persisted pending filesystem mutation.
type QueueItem struct {
	ID         string
	LibraryID  string
	RelPath    string
	Event      EventType
	Status     ItemStatus
	Retries    int
	EnqueuedAt time.Time
	NotBefore  time.Time
	LastError  string
}

// ConflictType classifies how local and remote disagree.
type ConflictType string

const (
	ConflictBothModified    ConflictType = "both_modified"
	ConflictDeletedModified ConflictType = "deleted_modified"
	ConflictModifiedDeleted ConflictType = "modified_deleted"
)

// ResolvePolicy is the user's answer to a conflict.
type ResolvePolicy string

const (
	ResolveKeepLocal  ResolvePolicy = "keep_local"
	ResolveKeepRemote ResolvePolicy = "keep_remote"
	ResolveKeepBoth   ResolvePolicy = "keep_both"
)

// Conflict is one persisted local/remote disagreement awaiting a policy.
type Conflict struct {
	ID             string // libraryID + ":" + fileID
	LibraryID      string
	FileID         string
	LocalPath      string // absolute
	RemotePath     string // library-relative
	LocalModified  time.Time
	RemoteModified time.Time
	Type           ConflictType
	DetectedAt     time.Time
}

// ConflictID builds the stable identity of a conflict record.
func ConflictID(libraryID, fileID string) string {
	return libraryID + ":" + fileID
}

// SyncStatus is a transient view over the engine, derived from the queue;
// it is not separately persisted.
type SyncStatus struct {
	IsRunning    bool
	IsPaused     bool
	LastSync     time.Time
	PendingItems int
	ErrorItems   int
	CurrentItem  string
}
