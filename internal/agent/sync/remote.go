package sync

import (
	"context"

	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
)

// RemoteLibrary is the engine's view of the server. The SDK adapter is the
// production implementation; tests swap in in-memory fakes.
type RemoteLibrary interface {
	// Walk lists every file of a library recursively, keyed by
	// slash-separated library-relative path.
	Walk(ctx context.Context, libraryID string) (map[string]*beaconsdk.BrowseItem, error)

	// Upload sends the whole local file to relPath, creating missing remote
	// parent directories. The duplicate policy decides what happens when the
	// path already holds a file: overwrite replaces it as a new version, ask
	// surfaces a DuplicateError instead.
	Upload(ctx context.Context, libraryID, relPath, localPath string, onDuplicate beaconsdk.OnDuplicate) (*beaconsdk.FileMetadata, error)

	// Download streams the file's current version to destPath.
	Download(ctx context.Context, fileID, destPath string) error

	// DeleteFile removes the file at relPath. A missing file yields
	// beaconsdk.ErrFileNotFound.
	DeleteFile(ctx context.Context, libraryID, relPath string) error
}
