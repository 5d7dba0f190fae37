package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	stdsync "sync"
	"time"

	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
	"github.com/beacon-library/beacon-agent/internal/utils"
)

var errRemoteUnavailable = errors.New("remote unavailable")

type fakeFile struct {
	id        string
	data      []byte
	updatedAt time.Time
}

// fakeRemote is an in-memory RemoteLibrary for engine tests.
type fakeRemote struct {
	mu        stdsync.Mutex
	nextID    int
	libraries map[string]map[string]*fakeFile // libraryID -> relPath -> file

	failures  int // remaining transfer calls to reject
	walkFail  map[string]error
	uploads   int
	downloads int
	deletes   int
}

func newFakeRemote(libraryIDs ...string) *fakeRemote {
	f := &fakeRemote{
		libraries: make(map[string]map[string]*fakeFile),
		walkFail:  make(map[string]error),
	}
	for _, id := range libraryIDs {
		f.libraries[id] = make(map[string]*fakeFile)
	}
	return f
}

func (f *fakeRemote) put(libraryID, relPath string, data []byte, updatedAt time.Time) *fakeFile {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	file := &fakeFile{
		id:        fmt.Sprintf("file-%d", f.nextID),
		data:      append([]byte(nil), data...),
		updatedAt: updatedAt,
	}
	f.libraries[libraryID][relPath] = file
	return file
}

func (f *fakeRemote) get(libraryID, relPath string) *fakeFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.libraries[libraryID][relPath]
}

func (f *fakeRemote) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *fakeRemote) takeFailure() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *fakeRemote) failWalk(libraryID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walkFail[libraryID] = err
}

func (f *fakeRemote) Walk(_ context.Context, libraryID string) (map[string]*beaconsdk.BrowseItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.walkFail[libraryID]; err != nil {
		return nil, err
	}

	items := make(map[string]*beaconsdk.BrowseItem)
	for relPath, file := range f.libraries[libraryID] {
		sum := sha256.Sum256(file.data)
		items[relPath] = &beaconsdk.BrowseItem{
			ID:             file.id,
			Name:           path.Base(relPath),
			Type:           beaconsdk.ItemTypeFile,
			SizeBytes:      int64(len(file.data)),
			ChecksumSHA256: hex.EncodeToString(sum[:]),
			UpdatedAt:      file.updatedAt,
		}
	}
	return items, nil
}

func (f *fakeRemote) Upload(_ context.Context, libraryID, relPath, localPath string, onDuplicate beaconsdk.OnDuplicate) (*beaconsdk.FileMetadata, error) {
	if f.takeFailure() {
		return nil, errRemoteUnavailable
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.libraries[libraryID][relPath]; ok && onDuplicate == beaconsdk.OnDuplicateAsk {
		return nil, &beaconsdk.DuplicateError{Conflict: &beaconsdk.DuplicateConflict{
			Conflict: true,
			Message:  "file already exists",
			ExistingFile: &beaconsdk.FileMetadata{
				ID:        existing.id,
				LibraryID: libraryID,
				Filename:  path.Base(relPath),
				UpdatedAt: existing.updatedAt,
			},
		}}
	}

	f.nextID++
	file := &fakeFile{
		id:        fmt.Sprintf("file-%d", f.nextID),
		data:      data,
		updatedAt: time.Now().UTC(),
	}
	if existing, ok := f.libraries[libraryID][relPath]; ok {
		file.id = existing.id
	}
	f.libraries[libraryID][relPath] = file
	f.uploads++

	return &beaconsdk.FileMetadata{
		ID:        file.id,
		LibraryID: libraryID,
		Filename:  path.Base(relPath),
		SizeBytes: int64(len(data)),
		UpdatedAt: file.updatedAt,
	}, nil
}

func (f *fakeRemote) Download(_ context.Context, fileID, destPath string) error {
	if f.takeFailure() {
		return errRemoteUnavailable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, files := range f.libraries {
		for _, file := range files {
			if file.id == fileID {
				if err := utils.EnsureParent(destPath); err != nil {
					return err
				}
				f.downloads++
				return os.WriteFile(destPath, file.data, 0o644)
			}
		}
	}
	return beaconsdk.ErrFileNotFound
}

func (f *fakeRemote) DeleteFile(_ context.Context, libraryID, relPath string) error {
	if f.takeFailure() {
		return errRemoteUnavailable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.libraries[libraryID][relPath]; !ok {
		return beaconsdk.ErrFileNotFound
	}
	delete(f.libraries[libraryID], relPath)
	f.deletes++
	return nil
}
