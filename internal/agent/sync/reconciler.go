package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/beacon-library/beacon-agent/internal/agent/config"
	"github.com/beacon-library/beacon-agent/internal/agent/workspace"
	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
	"github.com/beacon-library/beacon-agent/internal/utils"
	"github.com/dustin/go-humanize"
)

// ReconcileStats summarizes one pass over one library.
type ReconcileStats struct {
	Library   string
	Downloads int
	Uploads   int
	Conflicts int
	InSync    int
}

// Reconciler computes the full remote/local diff of each library and closes
// the gap: remote-only files come down, local-only files go up, and files
// whose timestamps diverge beyond the tolerance become conflict records for
// the user to resolve. It never deletes on either side.
type Reconciler struct {
	remote    RemoteLibrary
	scanner   *Scanner
	ws        *workspace.Workspace
	conflicts *SyncStore
	locks     *KeyedMutex
}

func NewReconciler(remote RemoteLibrary, scanner *Scanner, ws *workspace.Workspace, store *SyncStore, locks *KeyedMutex) *Reconciler {
	return &Reconciler{
		remote:    remote,
		scanner:   scanner,
		ws:        ws,
		conflicts: store,
		locks:     locks,
	}
}

// ReconcileAll runs every configured library. One library's failure is
// logged and never blocks the others.
func (r *Reconciler) ReconcileAll(ctx context.Context, libs []config.LibraryRef) []*ReconcileStats {
	var all []*ReconcileStats

	for _, lib := range libs {
		if ctx.Err() != nil {
			return all
		}

		stats, err := r.Reconcile(ctx, lib)
		if err != nil {
			slog.Error("reconcile failed", "library", lib.Name, "error", err)
			continue
		}
		all = append(all, stats)
	}

	return all
}

func (r *Reconciler) Reconcile(ctx context.Context, lib config.LibraryRef) (*ReconcileStats, error) {
	stats := &ReconcileStats{Library: lib.Name}

	remoteFiles, err := r.remote.Walk(ctx, lib.ID)
	if err != nil {
		return nil, fmt.Errorf("walk remote: %w", err)
	}

	local, err := r.scanner.Scan(r.ws.LibraryDir(lib.Name))
	if err != nil {
		return nil, fmt.Errorf("scan local: %w", err)
	}

	for relPath, remote := range remoteFiles {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		localInfo, exists := local[relPath]
		delete(local, relPath)

		// a file already in conflict is left alone until the user resolves it
		if c, err := r.conflicts.GetConflict(ConflictID(lib.ID, remote.ID)); err != nil {
			slog.Warn("conflict lookup failed", "library", lib.Name, "path", relPath, "error", err)
			continue
		} else if c != nil {
			stats.Conflicts++
			continue
		}

		if !exists {
			if err := r.download(ctx, lib, remote, relPath); err != nil {
				slog.Warn("download failed", "library", lib.Name, "path", relPath, "error", err)
				continue
			}
			stats.Downloads++
			continue
		}

		drift := localInfo.ModTime.Sub(remote.UpdatedAt)
		if drift < 0 {
			drift = -drift
		}
		if drift <= timestampTolerance {
			stats.InSync++
			continue
		}

		// both sides hold content and the timestamps disagree; record it and
		// touch nothing
		if err := r.recordConflict(lib, remote, localInfo, relPath); err != nil {
			slog.Warn("conflict record failed", "library", lib.Name, "path", relPath, "error", err)
			continue
		}
		slog.Info("conflict detected", "library", lib.Name, "path", relPath)
		stats.Conflicts++
	}

	// whatever is left locally is unknown to the server
	for relPath := range local {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		uploaded, err := r.upload(ctx, lib, relPath)
		if err != nil {
			slog.Warn("upload failed", "library", lib.Name, "path", relPath, "error", err)
			continue
		}
		if uploaded {
			stats.Uploads++
		} else {
			stats.Conflicts++
		}
	}

	return stats, nil
}

func (r *Reconciler) download(ctx context.Context, lib config.LibraryRef, remote *beaconsdk.BrowseItem, relPath string) error {
	unlock := r.locks.Lock(TransferKey(lib.ID, relPath))
	defer unlock()

	dest := r.ws.AbsPath(lib.Name, relPath)
	if err := r.remote.Download(ctx, remote.ID, dest); err != nil {
		return err
	}

	if remote.ChecksumSHA256 != "" {
		sum, err := utils.FileChecksum(dest)
		if err != nil {
			return err
		}
		if sum != remote.ChecksumSHA256 {
			return fmt.Errorf("checksum mismatch: got %s want %s", sum, remote.ChecksumSHA256)
		}
	}

	// align mtime with the server so the next pass sees the pair in sync
	_ = os.Chtimes(dest, remote.UpdatedAt, remote.UpdatedAt)

	slog.Debug("downloaded", "library", lib.Name, "path", relPath,
		"size", humanize.Bytes(uint64(remote.SizeBytes)))
	return nil
}

// upload sends a local-only file with the `ask` policy so a racing remote
// create surfaces as a conflict instead of an overwrite. Returns false when
// the server reported a duplicate and a conflict was recorded instead.
func (r *Reconciler) upload(ctx context.Context, lib config.LibraryRef, relPath string) (bool, error) {
	unlock := r.locks.Lock(TransferKey(lib.ID, relPath))
	defer unlock()

	absPath := r.ws.AbsPath(lib.Name, relPath)
	meta, err := r.remote.Upload(ctx, lib.ID, relPath, absPath, beaconsdk.OnDuplicateAsk)

	var dupErr *beaconsdk.DuplicateError
	if errors.As(err, &dupErr) && dupErr.Conflict.ExistingFile != nil {
		existing := dupErr.Conflict.ExistingFile
		info, statErr := os.Stat(absPath)
		if statErr != nil {
			return false, statErr
		}

		c := &Conflict{
			ID:             ConflictID(lib.ID, existing.ID),
			LibraryID:      lib.ID,
			FileID:         existing.ID,
			LocalPath:      absPath,
			RemotePath:     relPath,
			LocalModified:  info.ModTime(),
			RemoteModified: existing.UpdatedAt,
			Type:           ConflictBothModified,
			DetectedAt:     time.Now().UTC(),
		}
		if err := r.conflicts.UpsertConflict(c); err != nil {
			return false, err
		}
		slog.Info("conflict detected", "library", lib.Name, "path", relPath)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_ = os.Chtimes(absPath, meta.UpdatedAt, meta.UpdatedAt)

	slog.Debug("uploaded", "library", lib.Name, "path", relPath,
		"size", humanize.Bytes(uint64(meta.SizeBytes)))
	return true, nil
}

func (r *Reconciler) recordConflict(lib config.LibraryRef, remote *beaconsdk.BrowseItem, localInfo *LocalFileInfo, relPath string) error {
	return r.conflicts.UpsertConflict(&Conflict{
		ID:             ConflictID(lib.ID, remote.ID),
		LibraryID:      lib.ID,
		FileID:         remote.ID,
		LocalPath:      r.ws.AbsPath(lib.Name, relPath),
		RemotePath:     relPath,
		LocalModified:  localInfo.ModTime,
		RemoteModified: remote.UpdatedAt,
		Type:           ConflictBothModified,
		DetectedAt:     time.Now().UTC(),
	})
}
