package pending

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	ev        Event
	expiresAt time.Time
}

// MemoryCache keeps events in process memory. Expired items are dropped when
// read or when the next write sweeps.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: map[string]memoryItem{}, ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Put(_ context.Context, sessionID string, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, it := range c.items {
		if c.expired(it, now) {
			delete(c.items, id)
		}
	}
	c.items[sessionID] = memoryItem{ev: ev, expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Take(_ context.Context, sessionID string) (*Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[sessionID]
	if !ok {
		return nil, nil
	}
	delete(c.items, sessionID)
	if c.expired(it, c.now()) {
		return nil, nil
	}
	ev := it.ev
	return &ev, nil
}

func (c *MemoryCache) Delete(_ context.Context, sessionIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range sessionIDs {
		delete(c.items, id)
	}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *MemoryCache) expired(it memoryItem, now time.Time) bool {
	return c.ttl > 0 && now.After(it.expiresAt)
}
