package testkit

import (
	"context"
	"sync"

	"gonzs/adapters/rng"
	"gonzs/domain/core"
	"gonzs/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	rng   *rng.PCGAdapter
	cache *InMemoryResultCache // Shared cache instance
}

// NewTestKit creates a kit with a fresh RNG adapter and an empty cache
func NewTestKit() *TestKit {
	return &TestKit{
		rng:   rng.NewPCGAdapter(),
		cache: NewInMemoryResultCache(),
	}
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// ResultCache returns the shared in-memory result cache
func (t *TestKit) ResultCache() *InMemoryResultCache {
	return t.cache
}

// InMemoryResultCache implements ports.ResultCachePort for tests and for the
// CLI when no database is configured
type InMemoryResultCache struct {
	mu      sync.RWMutex
	results map[string]ports.CachedResult
	gets    int
	puts    int
}

// NewInMemoryResultCache creates an empty cache
func NewInMemoryResultCache() *InMemoryResultCache {
	return &InMemoryResultCache{results: make(map[string]ports.CachedResult)}
}

func cacheKey(fingerprint core.Hash, kind ports.ResultKind) string {
	return string(kind) + ":" + fingerprint.String()
}

// Get returns a stored result or core.ErrResultNotFound
func (c *InMemoryResultCache) Get(ctx context.Context, fingerprint core.Hash, kind ports.ResultKind) (*ports.CachedResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++

	result, ok := c.results[cacheKey(fingerprint, kind)]
	if !ok {
		return nil, core.ErrResultNotFound
	}
	return &result, nil
}

// Put stores a result, replacing any previous entry for the same key
func (c *InMemoryResultCache) Put(ctx context.Context, result ports.CachedResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++

	c.results[cacheKey(result.Fingerprint, result.Kind)] = result
	return nil
}

// Stats returns the number of Get and Put calls so far
func (c *InMemoryResultCache) Stats() (gets, puts int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gets, c.puts
}

// Len returns the number of stored results
func (c *InMemoryResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
