package build

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var artifactsBucket = []byte("artifacts")

// BoltCache implements ArtifactCache in a single boltdb file. Unlike
// FileCache the file is locked by one process at a time.
type BoltCache struct {
	path   string
	db     *bolt.DB
	logger *zap.Logger
}

// NewBoltCache returns a BoltCache for the file at path. Call Open before use.
func NewBoltCache(path string) *BoltCache {
	return &BoltCache{
		path:   path,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger on the cache.
func (c *BoltCache) WithLogger(l *zap.Logger) {
	c.logger = l
}

// Open creates the boltdb file if it doesn't exist and opens it otherwise.
func (c *BoltCache) Open() error {
	// Ensure the required directory structure exists.
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("unable to create directory %s: %v", c.path, err)
	}

	db, err := bolt.Open(c.path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("unable to open boltdb file %v", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(artifactsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return fmt.Errorf("unable to initialize boltdb file: %v", err)
	}
	c.db = db

	c.logger.Debug("Artifact cache opened", zap.String("path", c.path))
	return nil
}

// Close the bolt database.
func (c *BoltCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns a copy of the artifact for key. The bytes bolt hands out are
// only valid inside the transaction.
func (c *BoltCache) Get(key CacheKey) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(artifactsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return out, out != nil, nil
}

// Put stores the artifact for key.
func (c *BoltCache) Put(key CacheKey, artifact []byte) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(artifactsBucket).Put([]byte(key), artifact)
	})
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Len returns the number of cached artifacts.
func (c *BoltCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(artifactsBucket).Stats().KeyN
		return nil
	})
	return n, err
}
