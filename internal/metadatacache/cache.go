// Package metadatacache implements the TTL-bounded (registry, package,
// version) to decoded version metadata cache. Only the version-metadata endpoint
// reads and writes it.
package metadatacache

import (
	"sync"
	"time"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// DefaultTTL is the default cache lifetime for a version metadata entry.
const DefaultTTL = 60 * time.Minute

type key struct {
	registryURL string
	identity    core.RegistryIdentity
	version     string
}

type entry struct {
	metadata core.VersionMetadata
	expiry   time.Time
}

// Cache is a thread-safe TTL cache keyed by (registry, identity, version).
type Cache struct {
	clock core.Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[key]entry
}

// New returns a Cache using clk for TTL comparisons and ttl as the entry
// lifetime (metadatacache.DefaultTTL if ttl <= 0).
func New(clk core.Clock, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{clock: clk, ttl: ttl, cache: make(map[key]entry)}
}

// Get returns the cached metadata if present and not expired.
func (c *Cache) Get(registryURL string, id core.RegistryIdentity, version string) (core.VersionMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.cache[key{registryURL, id, version}]
	if !ok || !c.clock.Now().Before(e.expiry) {
		return core.VersionMetadata{}, false
	}
	return e.metadata, true
}

// Put stores metadata, overwriting any existing entry for the same key.
func (c *Cache) Put(registryURL string, id core.RegistryIdentity, version string, metadata core.VersionMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key{registryURL, id, version}] = entry{
		metadata: metadata,
		expiry:   c.clock.Now().Add(c.ttl),
	}
}
