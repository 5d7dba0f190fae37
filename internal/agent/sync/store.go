package sync

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/beacon-library/beacon-agent/internal/utils"
	_ "github.com/mattn/go-sqlite3"
)

// timestamps are stored as integer unix nanoseconds so ordering and
// backoff comparisons happen numerically inside sqlite
const storeSchema = `
CREATE TABLE IF NOT EXISTS sync_queue (
	id          TEXT PRIMARY KEY,
	library_id  TEXT NOT NULL,
	rel_path    TEXT NOT NULL,
	event       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	retries     INTEGER NOT NULL DEFAULT 0,
	enqueued_at INTEGER NOT NULL,
	not_before  INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, enqueued_at);
CREATE INDEX IF NOT EXISTS idx_sync_queue_path ON sync_queue(library_id, rel_path);

CREATE TABLE IF NOT EXISTS sync_conflicts (
	id              TEXT PRIMARY KEY,
	library_id      TEXT NOT NULL,
	file_id         TEXT NOT NULL,
	local_path      TEXT NOT NULL,
	remote_path     TEXT NOT NULL,
	local_modified  INTEGER NOT NULL,
	remote_modified INTEGER NOT NULL,
	type            TEXT NOT NULL,
	detected_at     INTEGER NOT NULL
);
`

// SyncStore persists the change queue and conflict records in a single
// sqlite database under the workspace metadata dir, so both survive agent
// restarts.
type SyncStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSyncStore(path string) (*SyncStore, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?mode=rwc&_journal_mode=WAL&_foreign_keys=1&_synchronous=NORMAL&_busy_timeout=5000&_temp_store=MEMORY&_mmap_size=268435456",
		path,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sync store: %w", err)
	}

	// serialize all access through one connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sync store schema: %w", err)
	}

	// items left mid-flight by a crash go back to pending
	if _, err := db.Exec(`UPDATE sync_queue SET status = ? WHERE status = ?`, StatusPending, StatusSyncing); err != nil {
		db.Close()
		return nil, fmt.Errorf("recover sync queue: %w", err)
	}

	return &SyncStore{db: db}, nil
}

func (s *SyncStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ===================================================================================================
// queue

// Enqueue appends a pending item. A later event for a path that already has
// a pending item supersedes it in place, keeping the original FIFO position.
func (s *SyncStore) Enqueue(item *QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE sync_queue SET event = ?, retries = 0, not_before = 0, last_error = ''
		 WHERE library_id = ? AND rel_path = ? AND status = ?`,
		item.Event, item.LibraryID, item.RelPath, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", item.RelPath, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO sync_queue (id, library_id, rel_path, event, status, retries, enqueued_at, not_before, last_error)
		 VALUES (?, ?, ?, ?, ?, 0, ?, 0, '')`,
		item.ID, item.LibraryID, item.RelPath, item.Event, StatusPending,
		item.EnqueuedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", item.RelPath, err)
	}
	return nil
}

// NextReady returns the oldest pending item whose backoff has elapsed, or
// nil when none is due.
func (s *SyncStore) NextReady(now time.Time) (*QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, library_id, rel_path, event, status, retries, enqueued_at, not_before, last_error
		 FROM sync_queue
		 WHERE status = ? AND not_before <= ?
		 ORDER BY enqueued_at ASC, id ASC
		 LIMIT 1`,
		StatusPending, now.UnixNano(),
	)

	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queue item: %w", err)
	}
	return item, nil
}

// EarliestNotBefore returns the soonest backoff deadline among pending
// items that are not yet due.
func (s *SyncStore) EarliestNotBefore(now time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MIN(not_before) FROM sync_queue WHERE status = ? AND not_before > ?`,
		StatusPending, now.UnixNano(),
	).Scan(&next)
	if err != nil || !next.Valid {
		return time.Time{}, false, err
	}

	return time.Unix(0, next.Int64), true, nil
}

func (s *SyncStore) MarkSyncing(id string) error {
	return s.setStatus(id, StatusSyncing)
}

// Requeue puts an item back to pending without consuming an attempt. Used
// when a dispatch is interrupted by shutdown rather than a real failure.
func (s *SyncStore) Requeue(id string) error {
	return s.setStatus(id, StatusPending)
}

func (s *SyncStore) setStatus(id string, status ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE sync_queue SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("mark queue item %s %s: %w", id, status, err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (s *SyncStore) MarkRetry(id string, retries int, notBefore time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE sync_queue SET status = ?, retries = ?, not_before = ?, last_error = ? WHERE id = ?`,
		StatusPending, retries, notBefore.UnixNano(), lastError, id,
	)
	if err != nil {
		return fmt.Errorf("mark queue item %s for retry: %w", id, err)
	}
	return nil
}

// MarkFailed moves an item to the terminal error state. It stays visible in
// status output but is never retried automatically.
func (s *SyncStore) MarkFailed(id string, retries int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE sync_queue SET status = ?, retries = ?, last_error = ? WHERE id = ?`,
		StatusError, retries, lastError, id,
	)
	if err != nil {
		return fmt.Errorf("mark queue item %s failed: %w", id, err)
	}
	return nil
}

func (s *SyncStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove queue item %s: %w", id, err)
	}
	return nil
}

// Counts returns the number of pending and terminally failed items.
func (s *SyncStore) Counts() (pending int, errored int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return 0, 0, fmt.Errorf("count queue items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status ItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, err
		}
		switch status {
		case StatusPending, StatusSyncing:
			pending += count
		case StatusError:
			errored += count
		}
	}
	return pending, errored, rows.Err()
}

// Items lists the whole queue in FIFO order, mainly for status output and
// tests.
func (s *SyncStore) Items() ([]*QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, library_id, rel_path, event, status, retries, enqueued_at, not_before, last_error
		 FROM sync_queue ORDER BY enqueued_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*QueueItem, error) {
	var item QueueItem
	var enqueuedAt, notBefore int64

	err := row.Scan(
		&item.ID, &item.LibraryID, &item.RelPath, &item.Event, &item.Status,
		&item.Retries, &enqueuedAt, &notBefore, &item.LastError,
	)
	if err != nil {
		return nil, err
	}

	item.EnqueuedAt = time.Unix(0, enqueuedAt)
	if notBefore != 0 {
		item.NotBefore = time.Unix(0, notBefore)
	}
	return &item, nil
}

// ===================================================================================================
// conflicts

// UpsertConflict inserts or refreshes a conflict record. The identity is
// (library, file id), so re-detecting the same divergence never multiplies
// records; the original detection time is preserved.
func (s *SyncStore) UpsertConflict(c *Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO sync_conflicts (id, library_id, file_id, local_path, remote_path, local_modified, remote_modified, type, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			local_path = excluded.local_path,
			remote_path = excluded.remote_path,
			local_modified = excluded.local_modified,
			remote_modified = excluded.remote_modified,
			type = excluded.type`,
		c.ID, c.LibraryID, c.FileID, c.LocalPath, c.RemotePath,
		c.LocalModified.UnixNano(), c.RemoteModified.UnixNano(),
		c.Type, c.DetectedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert conflict %s: %w", c.ID, err)
	}
	return nil
}

// GetConflict returns the conflict record, or nil when none exists.
func (s *SyncStore) GetConflict(id string) (*Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, library_id, file_id, local_path, remote_path, local_modified, remote_modified, type, detected_at
		 FROM sync_conflicts WHERE id = ?`, id,
	)

	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict %s: %w", id, err)
	}
	return c, nil
}

func (s *SyncStore) ListConflicts() ([]*Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, library_id, file_id, local_path, remote_path, local_modified, remote_modified, type, detected_at
		 FROM sync_conflicts ORDER BY detected_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func (s *SyncStore) DeleteConflict(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM sync_conflicts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conflict %s: %w", id, err)
	}
	return nil
}

func scanConflict(row rowScanner) (*Conflict, error) {
	var c Conflict
	var localMod, remoteMod, detectedAt int64

	err := row.Scan(
		&c.ID, &c.LibraryID, &c.FileID, &c.LocalPath, &c.RemotePath,
		&localMod, &remoteMod, &c.Type, &detectedAt,
	)
	if err != nil {
		return nil, err
	}

	c.LocalModified = time.Unix(0, localMod)
	c.RemoteModified = time.Unix(0, remoteMod)
	c.DetectedAt = time.Unix(0, detectedAt)
	return &c, nil
}
