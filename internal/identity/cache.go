// Package identity resolves contributor identifiers to host runtime
// modules through a bounded cache.
package identity

import (
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stelliform/plughost/internal/host"
)

// DefaultCacheSize bounds the identifier-to-module cache. Resolution is
// cheap enough that eviction only costs a repeat lookup.
const DefaultCacheSize = 200

// Cache maps numeric contributor identifiers to module handles. Entries
// are evicted least-recently-used and transparently re-resolved from the
// runtime on the next request; the cache never owns a module's lifetime.
//
// Cache is safe for concurrent use.
type Cache struct {
	runtime host.Runtime
	modules *lru.Cache[int64, host.Module]
}

// NewCache creates a cache over the given runtime. A size <= 0 selects
// DefaultCacheSize.
func NewCache(runtime host.Runtime, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	modules, err := lru.New[int64, host.Module](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity cache: %w", err)
	}
	return &Cache{runtime: runtime, modules: modules}, nil
}

// Resolve parses a contributor identifier and resolves it to a module.
// A malformed or non-numeric identifier resolves to nil rather than an
// error, as does an identifier the runtime does not know.
func (c *Cache) Resolve(id string) host.Module {
	numeric, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil
	}
	return c.ResolveID(numeric)
}

// ResolveID resolves a numeric identifier to a module, consulting the
// cache first. A cached handle whose module has since been uninstalled is
// dropped and looked up again, so callers never observe a dead handle the
// runtime no longer reports.
func (c *Cache) ResolveID(id int64) host.Module {
	if m, ok := c.modules.Get(id); ok {
		if m.State() != host.StateUninstalled {
			return m
		}
		c.modules.Remove(id)
	}

	m := c.runtime.Module(id)
	if m == nil {
		return nil
	}
	c.modules.Add(id, m)
	return m
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.modules.Len()
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	c.modules.Purge()
}
