package build

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fsscompiler/internal/build/buildtest"
)

func newTestBoltCache(t *testing.T, path string) *BoltCache {
	t.Helper()
	c := NewBoltCache(path)
	c.WithLogger(zaptest.NewLogger(t))
	require.NoError(t, c.Open())
	return c
}

func TestBoltCache_GetPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	c := newTestBoltCache(t, path)

	_, ok, err := c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put("k1", []byte("binary")))
	got, ok, err := c.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("binary"), got)

	// Entries survive a reopen.
	require.NoError(t, c.Close())
	c = newTestBoltCache(t, path)
	defer c.Close()
	got, ok, err = c.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("binary"), got)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDriver_BoltCacheSkipsSecondCompile(t *testing.T) {
	compiler, counter := buildtest.CountingCompiler(t, "echo cached")
	c := newTestBoltCache(t, filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close()

	d := NewDriver(zaptest.NewLogger(t))
	d.Toolchain.Command = compiler
	d.WorkspaceRoot = t.TempDir()
	d.RunTimeout = 10 * time.Second
	d.Cache = c

	for i := 0; i < 2; i++ {
		out, err := d.Run(context.Background(), "job", "int main() {}\n")
		require.NoError(t, err)
		assert.Equal(t, "cached\n", string(out.Stdout))
		assert.Equal(t, i == 1, out.CacheHit)
	}
	assert.Equal(t, 1, buildtest.Invocations(t, counter))
}
