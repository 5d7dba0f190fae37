package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, paths map[string]string) {
	t.Helper()

	for rel, content := range paths {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func TestScannerSnapshot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":            "alpha",
		"sub/b.txt":        "beta",
		"sub/deeper/c.txt": "gamma",
	})

	snapshot, err := NewScanner(NewSyncIgnoreList(root)).Scan(root)
	require.NoError(t, err)

	require.Len(t, snapshot, 3)
	assert.Contains(t, snapshot, "a.txt")
	assert.Contains(t, snapshot, "sub/b.txt")
	assert.Contains(t, snapshot, "sub/deeper/c.txt")
	assert.Equal(t, int64(5), snapshot["a.txt"].Size)
}

func TestScannerSkipsIgnored(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"real.txt":               "keep",
		".DS_Store":              "junk",
		"Thumbs.db":              "junk",
		"~$report.docx":          "office lock file",
		"draft.tmp":              "temp",
		"download.crdownload":    "partial",
		"movie.mkv.beacon-part":  "partial download",
		".beacon/sync.db":        "bookkeeping",
		".git/config":            "vcs",
		"sub/report_local_20260214153045.pdf": "conflict copy",
	})

	snapshot, err := NewScanner(NewSyncIgnoreList(root)).Scan(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"real.txt"}, snapshotKeys(snapshot))
}

func TestScannerMissingDir(t *testing.T) {
	snapshot, err := NewScanner(nil).Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func snapshotKeys(s LocalSnapshot) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}
