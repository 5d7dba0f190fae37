package sync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
)

// sdkRemote adapts the SDK to the RemoteLibrary interface. It keeps a
// directory-id cache per library because uploads address directories by id
// while the engine thinks in paths.
type sdkRemote struct {
	sdk *beaconsdk.BeaconSDK

	mu       sync.Mutex
	dirCache map[string]string // libraryID + ":" + relDir -> directory id
}

func NewSDKRemote(sdk *beaconsdk.BeaconSDK) RemoteLibrary {
	return &sdkRemote{
		sdk:      sdk,
		dirCache: make(map[string]string),
	}
}

func (r *sdkRemote) Walk(ctx context.Context, libraryID string) (map[string]*beaconsdk.BrowseItem, error) {
	files := make(map[string]*beaconsdk.BrowseItem)

	type dirEntry struct {
		browsePath string // server path, "/"-rooted
		rel        string // library-relative, "" for root
	}
	queue := []dirEntry{{browsePath: "/", rel: ""}}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		items, err := r.sdk.Libraries.BrowseAll(ctx, libraryID, dir.browsePath)
		if err != nil {
			return nil, fmt.Errorf("browse %s: %w", dir.browsePath, err)
		}

		for _, item := range items {
			rel := item.Name
			if dir.rel != "" {
				rel = dir.rel + "/" + item.Name
			}

			if item.IsDir() {
				r.cacheDir(libraryID, rel, item.ID)
				queue = append(queue, dirEntry{browsePath: "/" + rel, rel: rel})
				continue
			}
			files[rel] = item
		}
	}

	return files, nil
}

func (r *sdkRemote) Upload(ctx context.Context, libraryID, relPath, localPath string, onDuplicate beaconsdk.OnDuplicate) (*beaconsdk.FileMetadata, error) {
	dirID, err := r.ensureDirectory(ctx, libraryID, parentDir(relPath))
	if err != nil {
		return nil, err
	}

	result, err := r.sdk.Files.Upload(ctx, &beaconsdk.UploadJob{
		LibraryID:   libraryID,
		DirectoryID: dirID,
		Filename:    path.Base(relPath),
		FilePath:    localPath,
		OnDuplicate: onDuplicate,
	})
	if err != nil {
		// a cached id can go stale when the directory is deleted remotely;
		// flush the library's entries so the next attempt re-resolves
		var apiErr *beaconsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == beaconsdk.CodeNotFound {
			r.dropLibraryDirs(libraryID)
		}
		return nil, err
	}

	return result.File, nil
}

func (r *sdkRemote) Download(ctx context.Context, fileID, destPath string) error {
	return r.sdk.Files.Download(ctx, fileID, destPath, nil)
}

func (r *sdkRemote) DeleteFile(ctx context.Context, libraryID, relPath string) error {
	item, err := r.findFile(ctx, libraryID, relPath)
	if err != nil {
		return err
	}
	return r.sdk.Files.Delete(ctx, item.ID)
}

// findFile resolves a relative path to its file record by listing the
// parent directory; the server has no lookup-by-path endpoint.
func (r *sdkRemote) findFile(ctx context.Context, libraryID, relPath string) (*beaconsdk.BrowseItem, error) {
	items, err := r.sdk.Libraries.BrowseAll(ctx, libraryID, "/"+parentDir(relPath))
	if err != nil {
		var apiErr *beaconsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == beaconsdk.CodeNotFound {
			return nil, beaconsdk.ErrFileNotFound
		}
		return nil, err
	}

	name := path.Base(relPath)
	for _, item := range items {
		if !item.IsDir() && item.Name == name {
			return item, nil
		}
	}
	return nil, beaconsdk.ErrFileNotFound
}

// ensureDirectory resolves relDir to its id, creating missing levels on the
// way down. A concurrent create by another client shows up as an E_CONFLICT
// and is resolved by re-browsing the parent.
func (r *sdkRemote) ensureDirectory(ctx context.Context, libraryID, relDir string) (string, error) {
	if relDir == "" {
		return "", nil
	}
	if id, ok := r.cachedDir(libraryID, relDir); ok {
		return id, nil
	}

	parentID, err := r.ensureDirectory(ctx, libraryID, parentDir(relDir))
	if err != nil {
		return "", err
	}

	created, err := r.sdk.Directories.Create(ctx, &beaconsdk.DirectoryCreateParams{
		LibraryID: libraryID,
		Name:      path.Base(relDir),
		ParentID:  parentID,
	})
	if err == nil {
		r.cacheDir(libraryID, relDir, created.ID)
		return created.ID, nil
	}

	var apiErr *beaconsdk.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != beaconsdk.CodeConflict {
		return "", fmt.Errorf("create directory %s: %w", relDir, err)
	}

	items, browseErr := r.sdk.Libraries.BrowseAll(ctx, libraryID, "/"+parentDir(relDir))
	if browseErr != nil {
		return "", fmt.Errorf("resolve directory %s: %w", relDir, browseErr)
	}
	name := path.Base(relDir)
	for _, item := range items {
		if item.IsDir() && item.Name == name {
			r.cacheDir(libraryID, relDir, item.ID)
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("resolve directory %s: %w", relDir, err)
}

func (r *sdkRemote) cachedDir(libraryID, relDir string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.dirCache[libraryID+":"+relDir]
	return id, ok
}

func (r *sdkRemote) cacheDir(libraryID, relDir, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirCache[libraryID+":"+relDir] = id
}

func (r *sdkRemote) dropLibraryDirs(libraryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := libraryID + ":"
	for key := range r.dirCache {
		if strings.HasPrefix(key, prefix) {
			delete(r.dirCache, key)
		}
	}
}

// parentDir returns the library-relative parent, "" for top-level entries.
func parentDir(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
