package authz

import (
	"sync"
	"time"
)

// OwnerCache is a short-TTL in-memory cache of policy number to owning
// customer ID. Policy ownership never changes after creation, so the TTL only
// bounds memory, not staleness.
type OwnerCache struct {
	mu      sync.RWMutex
	entries map[string]cachedOwner
	ttl     time.Duration
	done    chan struct{}
}

type cachedOwner struct {
	customerID string
	expiresAt  time.Time
}

// NewOwnerCache creates a new cache with the given TTL.
// Call Close to stop the background eviction goroutine.
func NewOwnerCache(ttl time.Duration) *OwnerCache {
	c := &OwnerCache{
		entries: make(map[string]cachedOwner),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.evictLoop()
	return c
}

// Get returns the cached owner and true if a valid entry exists.
func (c *OwnerCache) Get(policyNumber string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[policyNumber]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.customerID, true
}

// Set stores an owner with the configured TTL.
func (c *OwnerCache) Set(policyNumber, customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[policyNumber] = cachedOwner{
		customerID: customerID,
		expiresAt:  time.Now().Add(c.ttl),
	}
}

// Len returns the number of entries, expired or not.
func (c *OwnerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background eviction goroutine.
func (c *OwnerCache) Close() {
	close(c.done)
}

// evictLoop removes expired entries every minute.
func (c *OwnerCache) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *OwnerCache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}
