// Package diskcache implements a gob-encoded, TTL-bounded disk cache keyed
// by an opaque string identity, used by the metadata enrichment provider to
// avoid re-fetching a repository's enrichment record on every call.
package diskcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// DefaultTTL is the default cache entry lifetime.
const DefaultTTL = 3600 * time.Second

type envelope[T any] struct {
	StoredAt time.Time
	Value    T
}

// Cache is a TTL-bounded, gob-encoded disk cache of T values keyed by an
// opaque string. Each entry lives at its own file under Dir.
type Cache[T any] struct {
	fs    core.Filesystem
	dir   string
	clock core.Clock
	ttl   time.Duration
}

// New returns a Cache rooted at dir, using fs for all file I/O and clk for
// TTL comparisons. ttl <= 0 means DefaultTTL.
func New[T any](fs core.Filesystem, dir string, clk core.Clock, ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[T]{fs: fs, dir: dir, clock: clk, ttl: ttl}
}

func (c *Cache[T]) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".gob")
}

// Get returns the cached value for key if present and within TTL.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	path := c.pathFor(key)
	if !c.fs.Exists(path) {
		return zero, false, nil
	}

	data, err := c.fs.ReadFileContents(ctx, path)
	if err != nil {
		return zero, false, err
	}

	var env envelope[T]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return zero, false, fmt.Errorf("decoding cache entry: %w", err)
	}

	if !c.clock.Now().Before(env.StoredAt.Add(c.ttl)) {
		return zero, false, nil
	}
	return env.Value, true, nil
}

// Put stores value for key, stamped with the current time.
func (c *Cache[T]) Put(ctx context.Context, key string, value T) error {
	if err := c.fs.CreateDirectory(ctx, c.dir, true); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope[T]{StoredAt: c.clock.Now(), Value: value}); err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	return c.fs.WriteFileContents(ctx, c.pathFor(key), buf.Bytes())
}
