package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
	"github.com/beacon-library/beacon-agent/internal/utils"
)

var (
	ErrConflictNotFound = errors.New("sync: conflict not found")
	ErrUnknownPolicy    = errors.New("sync: unknown resolve policy")
)

// Resolver applies a user-chosen policy to a recorded conflict. The record
// is deleted only after the chosen transfer succeeds, so a failed resolution
// can simply be retried.
type Resolver struct {
	store  *SyncStore
	remote RemoteLibrary
	locks  *KeyedMutex
}

func NewResolver(store *SyncStore, remote RemoteLibrary, locks *KeyedMutex) *Resolver {
	return &Resolver{
		store:  store,
		remote: remote,
		locks:  locks,
	}
}

func (r *Resolver) Resolve(ctx context.Context, conflictID string, policy ResolvePolicy) error {
	c, err := r.store.GetConflict(conflictID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrConflictNotFound
	}

	unlock := r.locks.Lock(TransferKey(c.LibraryID, c.RemotePath))
	defer unlock()

	switch policy {
	case ResolveKeepLocal:
		err = r.keepLocal(ctx, c)
	case ResolveKeepRemote:
		err = r.keepRemote(ctx, c)
	case ResolveKeepBoth:
		err = r.keepBoth(ctx, c)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	if err != nil {
		return fmt.Errorf("resolve %s: %w", policy, err)
	}

	return r.store.DeleteConflict(c.ID)
}

// keepLocal pushes the local side to the server. When the local side of the
// conflict is a deletion, that deletion is what gets pushed.
func (r *Resolver) keepLocal(ctx context.Context, c *Conflict) error {
	if c.Type == ConflictDeletedModified {
		err := r.remote.DeleteFile(ctx, c.LibraryID, c.RemotePath)
		if errors.Is(err, beaconsdk.ErrFileNotFound) {
			return nil
		}
		return err
	}

	meta, err := r.remote.Upload(ctx, c.LibraryID, c.RemotePath, c.LocalPath, beaconsdk.OnDuplicateOverwrite)
	if err != nil {
		return err
	}
	_ = os.Chtimes(c.LocalPath, meta.UpdatedAt, meta.UpdatedAt)
	return nil
}

// keepRemote mirrors the remote side locally. When the remote side of the
// conflict is a deletion, the local file goes away.
func (r *Resolver) keepRemote(ctx context.Context, c *Conflict) error {
	if c.Type == ConflictModifiedDeleted {
		if err := os.Remove(c.LocalPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return r.download(ctx, c, c.LocalPath)
}

// keepBoth preserves the local content under a timestamped name, then pulls
// the remote version to the original path. When one side is a deletion
// there is only one version left, so it is kept as is.
func (r *Resolver) keepBoth(ctx context.Context, c *Conflict) error {
	if c.Type == ConflictModifiedDeleted {
		return nil
	}
	if utils.FileExists(c.LocalPath) {
		copyPath := conflictCopyPath(c.LocalPath, time.Now())
		if err := os.Rename(c.LocalPath, copyPath); err != nil {
			return err
		}
	}
	return r.download(ctx, c, c.LocalPath)
}

func (r *Resolver) download(ctx context.Context, c *Conflict, dest string) error {
	if err := r.remote.Download(ctx, c.FileID, dest); err != nil {
		return err
	}
	_ = os.Chtimes(dest, c.RemoteModified, c.RemoteModified)
	return nil
}

// conflictCopyPath derives "report_local_20260214153045.pdf" next to the
// original. The pattern is on the sync ignore list, so the copy stays
// local-only instead of looping back through the engine.
func conflictCopyPath(localPath string, now time.Time) string {
	ext := filepath.Ext(localPath)
	base := strings.TrimSuffix(localPath, ext)
	return fmt.Sprintf("%s_local_%s%s", base, now.Format("20060102150405"), ext)
}
