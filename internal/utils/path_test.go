package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := ResolvePath("~/Documents")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Documents"), resolved)

	_, err = ResolvePath("")
	assert.Error(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	resolved, err = ResolvePath("./a/../b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "b"), resolved)
}

func TestNormPath(t *testing.T) {
	assert.Equal(t, "a/b.txt", NormPath("/a/b.txt"))
	assert.Equal(t, "a/b.txt", NormPath("a//b.txt"))
	assert.Equal(t, "b.txt", NormPath("a/../b.txt"))
}

func TestEnsureDirAndExists(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "x", "y")

	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))
	assert.False(t, FileExists(nested))

	file := filepath.Join(nested, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))
	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))

	// a file squatting on the path is an error, not silent success
	assert.Error(t, EnsureDir(file))
}

func TestFileChecksum(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	sum, err := FileChecksum(file)
	require.NoError(t, err)
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}
