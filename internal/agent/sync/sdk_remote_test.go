package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/beacon-library/beacon-agent/internal/beaconsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteState is a minimal in-memory server backing the SDK adapter tests.
type remoteState struct {
	mu     stdsync.Mutex
	nextID int
	dirs   map[string]string // relative dir path -> id
	files  map[string]string // relative file path -> id

	dirCreates []string
	uploads    []string
	deletes    []string
}

func newRemoteState() *remoteState {
	return &remoteState{
		dirs:  make(map[string]string),
		files: make(map[string]string),
	}
}

func (s *remoteState) id() string {
	s.nextID++
	return fmt.Sprintf("id-%d", s.nextID)
}

func (s *remoteState) dirPathByID(id string) (string, bool) {
	for p, dirID := range s.dirs {
		if dirID == id {
			return p, true
		}
	}
	return "", false
}

func (s *remoteState) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/libraries/{id}/browse", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		browsePath := r.URL.Query().Get("path")
		rel := ""
		if browsePath != "/" {
			rel = browsePath[1:]
		}

		var items []*beaconsdk.BrowseItem
		for p, id := range s.dirs {
			if path.Dir(p) == "." && rel == "" || path.Dir(p) == rel {
				items = append(items, &beaconsdk.BrowseItem{ID: id, Name: path.Base(p), Type: beaconsdk.ItemTypeDirectory})
			}
		}
		for p, id := range s.files {
			if path.Dir(p) == "." && rel == "" || path.Dir(p) == rel {
				items = append(items, &beaconsdk.BrowseItem{ID: id, Name: path.Base(p), Type: beaconsdk.ItemTypeFile})
			}
		}

		json.NewEncoder(w).Encode(beaconsdk.BrowseResponse{Items: items, Total: len(items)})
	})

	mux.HandleFunc("POST /api/directories", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var body struct {
			Name     string `json:"name"`
			ParentID string `json:"parent_id"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		rel := body.Name
		if body.ParentID != "" {
			parent, ok := s.dirPathByID(body.ParentID)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"detail": "parent not found"})
				return
			}
			rel = parent + "/" + body.Name
		}

		if _, exists := s.dirs[rel]; exists {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"detail": "directory already exists"})
			return
		}

		id := s.id()
		s.dirs[rel] = id
		s.dirCreates = append(s.dirCreates, rel)
		json.NewEncoder(w).Encode(beaconsdk.Directory{ID: id, Name: body.Name})
	})

	mux.HandleFunc("POST /api/files/upload/init", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		rel := r.URL.Query().Get("filename")
		if dirID := r.URL.Query().Get("directory_id"); dirID != "" {
			parent, ok := s.dirPathByID(dirID)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"detail": "directory not found"})
				return
			}
			rel = parent + "/" + rel
		}
		s.uploads = append(s.uploads, rel)

		json.NewEncoder(w).Encode(beaconsdk.UploadSession{
			UploadID: "up:" + rel, FileID: s.id(), ChunkSize: 4 << 20, TotalChunks: 1,
		})
	})
	mux.HandleFunc("POST /api/files/upload/part", func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(8 << 20)
		json.NewEncoder(w).Encode(beaconsdk.UploadPartResponse{PartNumber: 1, ETag: "e"})
	})
	mux.HandleFunc("POST /api/files/upload/complete", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var params beaconsdk.CompleteUploadParams
		json.NewDecoder(r.Body).Decode(&params)
		rel := params.UploadID[len("up:"):]
		s.files[rel] = s.id()

		json.NewEncoder(w).Encode(beaconsdk.UploadCompleteResponse{
			File: &beaconsdk.FileMetadata{ID: s.files[rel], Filename: path.Base(rel)},
		})
	})

	mux.HandleFunc("DELETE /api/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		for rel, id := range s.files {
			if id == r.PathValue("id") {
				delete(s.files, rel)
				s.deletes = append(s.deletes, rel)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "file not found"})
	})

	return mux
}

func newTestRemote(t *testing.T) (RemoteLibrary, *remoteState) {
	t.Helper()

	state := newRemoteState()
	server := httptest.NewServer(state.handler())
	t.Cleanup(server.Close)

	sdk, err := beaconsdk.New(&beaconsdk.Config{BaseURL: server.URL})
	require.NoError(t, err)
	t.Cleanup(sdk.Close)

	return NewSDKRemote(sdk), state
}

func TestSDKRemoteWalk(t *testing.T) {
	remote, state := newTestRemote(t)
	state.dirs["sub"] = "dir-sub"
	state.dirs["sub/deep"] = "dir-deep"
	state.files["a.txt"] = "f-a"
	state.files["sub/b.txt"] = "f-b"
	state.files["sub/deep/c.txt"] = "f-c"

	files, err := remote.Walk(context.Background(), "lib-1")
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, "f-a", files["a.txt"].ID)
	assert.Equal(t, "f-b", files["sub/b.txt"].ID)
	assert.Equal(t, "f-c", files["sub/deep/c.txt"].ID)
}

func TestSDKRemoteUploadCreatesDirectories(t *testing.T) {
	remote, state := newTestRemote(t)

	local := filepath.Join(t.TempDir(), "c.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello"), 0o644))

	meta, err := remote.Upload(context.Background(), "lib-1", "x/y/c.txt", local, beaconsdk.OnDuplicateOverwrite)
	require.NoError(t, err)
	assert.Equal(t, "c.txt", meta.Filename)

	// both missing levels created, parent before child
	assert.Equal(t, []string{"x", "x/y"}, state.dirCreates)
	assert.Equal(t, []string{"x/y/c.txt"}, state.uploads)

	// a second upload into the same tree reuses the cached directory ids
	local2 := filepath.Join(t.TempDir(), "d.txt")
	require.NoError(t, os.WriteFile(local2, []byte("again"), 0o644))
	_, err = remote.Upload(context.Background(), "lib-1", "x/y/d.txt", local2, beaconsdk.OnDuplicateOverwrite)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x/y"}, state.dirCreates)
}

func TestSDKRemoteUploadResolvesExistingDirectory(t *testing.T) {
	remote, state := newTestRemote(t)
	state.dirs["x"] = "dir-x" // created by another client, not in the cache

	local := filepath.Join(t.TempDir(), "c.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello"), 0o644))

	_, err := remote.Upload(context.Background(), "lib-1", "x/c.txt", local, beaconsdk.OnDuplicateOverwrite)
	require.NoError(t, err)

	// the 409 was resolved by re-browsing, not by failing the upload
	assert.Empty(t, state.dirCreates)
	assert.Equal(t, []string{"x/c.txt"}, state.uploads)
}

func TestSDKRemoteUploadDropsStaleDirectoryIDs(t *testing.T) {
	remote, state := newTestRemote(t)

	local := filepath.Join(t.TempDir(), "c.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello"), 0o644))

	_, err := remote.Upload(context.Background(), "lib-1", "x/c.txt", local, beaconsdk.OnDuplicateOverwrite)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, state.dirCreates)

	// the directory disappears remotely; the cached id now dangles
	state.mu.Lock()
	state.dirs = make(map[string]string)
	state.mu.Unlock()

	_, err = remote.Upload(context.Background(), "lib-1", "x/c.txt", local, beaconsdk.OnDuplicateOverwrite)
	require.Error(t, err, "init against the stale id must fail")

	// the failure flushed the cache, so the retry re-resolves and recreates
	// the directory instead of burning every attempt on the dead id
	_, err = remote.Upload(context.Background(), "lib-1", "x/c.txt", local, beaconsdk.OnDuplicateOverwrite)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x"}, state.dirCreates)
}

func TestSDKRemoteDeleteFile(t *testing.T) {
	remote, state := newTestRemote(t)
	state.dirs["sub"] = "dir-sub"
	state.files["sub/b.txt"] = "f-b"

	require.NoError(t, remote.DeleteFile(context.Background(), "lib-1", "sub/b.txt"))
	assert.Equal(t, []string{"sub/b.txt"}, state.deletes)

	err := remote.DeleteFile(context.Background(), "lib-1", "sub/b.txt")
	assert.ErrorIs(t, err, beaconsdk.ErrFileNotFound)
}
