package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Fingerprint computes the one-way hash used as a cache key. The raw token
// is never stored.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time // cache-local expiry, never later than the token's own
}

// Cache memoizes successful introspection results keyed by token
// fingerprint. Only active results are ever written. It is safe for
// concurrent use; no lock is ever held across network I/O, so concurrent
// misses for the same fingerprint may each perform a remote call.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the live entry for the fingerprint, if any. An entry past
// its cache-local expiry is treated as a miss.
func (c *Cache) Get(fingerprint string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[fingerprint]
	if !ok || c.now().After(entry.expiresAt) {
		return Result{}, false
	}
	return entry.result, true
}

// GetStale returns the entry for the fingerprint even past its cache-local
// expiry, as long as the token itself has not expired. Used as the
// fallback when the introspection endpoint is unreachable.
func (c *Cache) GetStale(fingerprint string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[fingerprint]
	if !ok || c.now().After(entry.result.ExpiresAt) {
		return Result{}, false
	}
	return entry.result, true
}

// Put stores a verified result. The entry's lifetime is the shorter of the
// configured TTL and the token's remaining lifetime. Inactive or already
// expired results are never cached. An existing entry is superseded, not
// mutated.
func (c *Cache) Put(fingerprint string, result Result) {
	if !result.Active {
		return
	}

	now := c.now()
	ttl := c.ttl
	if remaining := result.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistically drop entries whose tokens have expired.
	for k, e := range c.entries {
		if now.After(e.result.ExpiresAt) {
			delete(c.entries, k)
		}
	}

	delete(c.entries, fingerprint)
	c.entries[fingerprint] = cacheEntry{
		result:    result,
		expiresAt: now.Add(ttl),
	}
}

// Len returns the number of entries currently held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
