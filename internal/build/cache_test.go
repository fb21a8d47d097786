package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolchainArgs(t *testing.T) {
	tc := Toolchain{
		Command:     "g++",
		OptFlag:     "-O2",
		IncludeDirs: []string{"/opt/fss", "/opt/extra"},
		CompileArgs: []string{"-std=c++17"},
		LinkArgs:    []string{"-lcrypto"},
	}
	want := []string{"-O2", "-I", "/opt/fss", "-I", "/opt/extra", "-std=c++17", "program.cpp", "-o", "program", "-lcrypto"}
	if diff := cmp.Diff(want, tc.Args("program.cpp", "program")); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}

	bare := Toolchain{Command: "c++"}
	if diff := cmp.Diff([]string{"a.cpp", "-o", "a"}, bare.Args("a.cpp", "a")); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestToolchainAbsolute(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	// Symlinked temp dirs would make a literal join differ from Abs.
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tc, err := Toolchain{
		Command:     "./bin/cxx",
		IncludeDirs: []string{"fss", "../shared", "/opt/abs"},
		LinkArgs:    []string{"-lcrypto"},
	}.Absolute()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "bin", "cxx"), tc.Command)
	assert.Equal(t, []string{filepath.Join(cwd, "fss"), filepath.Join(filepath.Dir(cwd), "shared"), "/opt/abs"}, tc.IncludeDirs)
	assert.Equal(t, []string{"-lcrypto"}, tc.LinkArgs)

	bare, err := Toolchain{Command: "g++"}.Absolute()
	require.NoError(t, err)
	assert.Equal(t, "g++", bare.Command)
	assert.Nil(t, bare.IncludeDirs)
}

func TestComputeCacheKey(t *testing.T) {
	base := DefaultToolchain()
	k1 := ComputeCacheKey(base, "src")
	assert.Len(t, string(k1), 64)
	assert.Equal(t, k1, ComputeCacheKey(base, "src"))

	assert.NotEqual(t, k1, ComputeCacheKey(base, "src2"))

	withFlag := base
	withFlag.OptFlag = "-O0"
	assert.NotEqual(t, k1, ComputeCacheKey(withFlag, "src"))

	withLib := base
	withLib.LibraryVersion = "fss-2"
	assert.NotEqual(t, k1, ComputeCacheKey(withLib, "src"))

	// Length prefixes keep list boundaries distinct.
	a := Toolchain{Command: "g++", CompileArgs: []string{"-a", "b"}}
	b := Toolchain{Command: "g++", CompileArgs: []string{"-ab"}}
	assert.NotEqual(t, ComputeCacheKey(a, "s"), ComputeCacheKey(b, "s"))
}

func TestFileCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	key := ComputeCacheKey(DefaultToolchain(), "int main() {}")

	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, []byte("ELF")))
	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("ELF"), got)

	assert.FileExists(t, filepath.Join(dir, string(key)[:2], string(key)+".bin"))
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache()
	in := []byte("abc")
	require.NoError(t, c.Put("k", in))
	in[0] = 'x'

	got, ok, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))

	got[0] = 'y'
	again, _, _ := c.Get("k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, c.Len())
}
