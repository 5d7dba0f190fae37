package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beacon-library/beacon-agent/internal/utils"
	"github.com/gofrs/flock"
)

const (
	// MetadataDirName holds the agent's own bookkeeping (queue db, lock
	// file). It lives inside the sync folder but is never synchronized.
	MetadataDirName = ".beacon"

	lockFile = "agent.lock"
	pathSep  = string(filepath.Separator)
)

var (
	ErrWorkspaceLocked = errors.New("sync folder locked by another agent")
	ErrOutsideRoot     = errors.New("path outside sync folder")
)

// Workspace is the local sync folder: one subdirectory per library, plus a
// hidden metadata dir.
type Workspace struct {
	Root        string
	MetadataDir string

	flock *flock.Flock
}

func New(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve sync folder %q: %w", rootDir, err)
	}

	metadataDir := filepath.Join(root, MetadataDirName)

	return &Workspace{
		Root:        root,
		MetadataDir: metadataDir,
		flock:       flock.New(filepath.Join(metadataDir, lockFile)),
	}, nil
}

// Setup creates the folder layout and takes the process lock so two agents
// never fight over one sync folder.
func (w *Workspace) Setup() error {
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	return w.Lock()
}

func (w *Workspace) Lock() error {
	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock sync folder: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock sync folder: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// LibraryDir returns the absolute local directory for a library folder.
func (w *Workspace) LibraryDir(folder string) string {
	return filepath.Join(w.Root, folder)
}

// AbsPath maps a library folder and slash-separated remote relative path to
// the absolute local path.
func (w *Workspace) AbsPath(folder, relPath string) string {
	return filepath.Join(w.Root, folder, filepath.FromSlash(relPath))
}

// SplitPath maps an absolute local path back to (library folder, relative
// path). The relative path uses forward slashes, matching the remote side.
func (w *Workspace) SplitPath(absPath string) (folder string, relPath string, err error) {
	rel, err := filepath.Rel(w.Root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", fmt.Errorf("%w: %s", ErrOutsideRoot, absPath)
	}

	parts := strings.SplitN(rel, pathSep, 2)
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: %s is not inside a library folder", ErrOutsideRoot, absPath)
	}

	return parts[0], utils.NormPath(parts[1]), nil
}

// IsMetadataPath reports whether a path is inside the agent's bookkeeping
// dir and must be ignored by the watcher and scanner.
func (w *Workspace) IsMetadataPath(path string) bool {
	return strings.HasPrefix(path, w.MetadataDir)
}
