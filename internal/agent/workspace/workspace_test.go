package workspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()

	ws, err := New(t.TempDir())
	require.NoError(t, err)
	return ws
}

func TestWorkspacePathMapping(t *testing.T) {
	ws := newTestWorkspace(t)

	abs := ws.AbsPath("Docs", "sub/report.pdf")
	assert.Equal(t, filepath.Join(ws.Root, "Docs", "sub", "report.pdf"), abs)

	folder, rel, err := ws.SplitPath(abs)
	require.NoError(t, err)
	assert.Equal(t, "Docs", folder)
	assert.Equal(t, "sub/report.pdf", rel)
}

func TestWorkspaceSplitPathRejectsOutside(t *testing.T) {
	ws := newTestWorkspace(t)

	_, _, err := ws.SplitPath("/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	// files directly under the root belong to no library
	_, _, err = ws.SplitPath(filepath.Join(ws.Root, "loose.txt"))
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestWorkspaceLockExcludesSecondAgent(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.Setup())
	defer ws.Unlock()

	second, err := New(ws.Root)
	require.NoError(t, err)
	assert.ErrorIs(t, second.Lock(), ErrWorkspaceLocked)

	require.NoError(t, ws.Unlock())
	require.NoError(t, second.Lock())
	require.NoError(t, second.Unlock())
}

func TestWorkspaceIsMetadataPath(t *testing.T) {
	ws := newTestWorkspace(t)

	assert.True(t, ws.IsMetadataPath(filepath.Join(ws.MetadataDir, "sync.db")))
	assert.False(t, ws.IsMetadataPath(filepath.Join(ws.Root, "Docs", "a.txt")))
}
