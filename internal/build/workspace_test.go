package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_WriteSourceReplacesAtomically(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "j")
	require.NoError(t, err)

	require.NoError(t, ws.WriteSource("first"))
	require.NoError(t, ws.WriteSource("second"))

	b, err := os.ReadFile(ws.SourcePath())
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))

	// No temp files are left behind.
	entries, err := os.ReadDir(ws.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sourceName, entries[0].Name())

	info, err := os.Stat(ws.SourcePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteFileAtomic_MissingDirectoryFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "f")
	assert.Error(t, writeFileAtomic(path, []byte("x"), 0o644))
	assert.NoFileExists(t, path)
}

func TestNewWorkspace_RelativeRootIsAbsolute(t *testing.T) {
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	ws, err := NewWorkspace("jobs", "j")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(ws.Dir))
}
