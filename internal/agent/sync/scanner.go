package sync

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Scanner builds full snapshots of local library folders. Snapshots are
// rebuilt from scratch on every pass; nothing is cached between runs.
type Scanner struct {
	ignore *SyncIgnoreList
}

func NewScanner(ignore *SyncIgnoreList) *Scanner {
	return &Scanner{ignore: ignore}
}

// Scan walks dir and returns every regular file keyed by slash-separated
// relative path. A folder that does not exist yet yields an empty snapshot,
// not an error.
func (s *Scanner) Scan(dir string) (LocalSnapshot, error) {
	snapshot := make(LocalSnapshot)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// entries can vanish mid-walk; skip them instead of failing the pass
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if path == dir {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if s.ignore != nil && s.ignore.ShouldIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			if os.IsNotExist(infoErr) {
				return nil
			}
			return infoErr
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		snapshot[rel] = &LocalFileInfo{
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		return nil
	})

	if err != nil {
		if os.IsNotExist(err) {
			return snapshot, nil
		}
		return nil, err
	}
	return snapshot, nil
}
