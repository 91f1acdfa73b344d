// Package cache provides the short-TTL response cache used in front of
// tenant-store reads. The cache is advisory only: every miss must be
// satisfiable by re-deriving the value from the tenant store, and it is
// never the system of record.
//
// Keys are namespaced per tenant resource ("org:{orgId}:...") so that a
// write can invalidate all related list views with one ClearPattern call.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/complium/complium/pkg/metrics"
)

// Cache stores opaque serialized values. Callers marshal domain values
// (JSON) so the memory and Redis backends satisfy the same contract.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	// ClearPattern removes every key under the given prefix. A trailing
	// "*" is accepted and ignored, so "org:X:processes:*" and
	// "org:X:processes:" behave identically.
	ClearPattern(ctx context.Context, pattern string)
}

func normalizePattern(pattern string) string {
	return strings.TrimSuffix(pattern, "*")
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if current, ok := c.entries[key]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("memory").Inc()
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) ClearPattern(_ context.Context, pattern string) {
	prefix := normalizePattern(pattern)
	if prefix == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}
