package build

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sync"
)

// CacheKey identifies a compiled artifact.
type CacheKey string

// ComputeCacheKey hashes the toolchain invocation, the library version and
// the generated source. All components are length-prefixed to prevent
// ambiguity.
//
// Include directories contribute their paths, not their contents: after
// rebuilding the primitive library in place, change LibraryVersion or the
// cache serves artifacts linked against the old build.
func ComputeCacheKey(tc Toolchain, source string) CacheKey {
	h := sha256.New()
	writeField(h, []byte(tc.Command))
	writeField(h, []byte(tc.OptFlag))
	writeList(h, tc.IncludeDirs)
	writeList(h, tc.CompileArgs)
	writeList(h, tc.LinkArgs)
	writeField(h, []byte(tc.LibraryVersion))
	writeField(h, []byte(source))
	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, data []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)
}

func writeList(h hash.Hash, items []string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(items)))
	h.Write(n[:])
	for _, it := range items {
		writeField(h, []byte(it))
	}
}

// ArtifactCache stores compiled binaries so identical programs are not
// recompiled. Implementations must be safe for concurrent use.
type ArtifactCache interface {
	// Get returns the artifact for key, or ok=false on a miss.
	Get(key CacheKey) (artifact []byte, ok bool, err error)

	// Put stores an artifact.
	Put(key CacheKey, artifact []byte) error
}

// FileCache implements ArtifactCache on the filesystem.
//
// Structure:
//
//	{Dir}/
//	  {key[0:2]}/
//	    {key}.bin
type FileCache struct {
	Dir string
}

// NewFileCache creates a filesystem-backed artifact cache.
func NewFileCache(dir string) *FileCache {
	return &FileCache{Dir: dir}
}

// Get reads the artifact for key.
func (c *FileCache) Get(key CacheKey) ([]byte, bool, error) {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return data, true, nil
}

// Put writes the artifact atomically; a concurrent reader sees either no
// entry or a complete one.
func (c *FileCache) Put(key CacheKey, artifact []byte) error {
	path := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := writeFileAtomic(path, artifact, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// entryPath uses the first 2 characters of the key as a prefix directory.
func (c *FileCache) entryPath(key CacheKey) string {
	k := string(key)
	if len(k) < 2 {
		return filepath.Join(c.Dir, k+".bin")
	}
	return filepath.Join(c.Dir, k[:2], k+".bin")
}

// MemoryCache implements ArtifactCache in memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[CacheKey][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[CacheKey][]byte)}
}

func (c *MemoryCache) Get(key CacheKey) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (c *MemoryCache) Put(key CacheKey, artifact []byte) error {
	v := make([]byte, len(artifact))
	copy(v, artifact)
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached artifacts.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
