package client

import (
	"sync"

	"recipebook/ingredientservice/internal/domain"
)

// Cache maps ingredient ids to resolved records for one client session.
// Entries are written once, never evicted and never written back to the
// service. Reads never wait on network activity.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.Ingredient
	subs    map[uint64]func(domain.Ingredient)
	nextSub uint64
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]domain.Ingredient),
		subs:    make(map[uint64]func(domain.Ingredient)),
	}
}

func (c *Cache) Get(id string) (domain.Ingredient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.entries[id]
	if !ok {
		return domain.Ingredient{}, false
	}
	return record.Clone(), true
}

// Put stores record unless its id is already cached and reports whether it
// was stored. Subscribers are notified only for new entries.
func (c *Cache) Put(record domain.Ingredient) bool {
	if record.ID == "" {
		return false
	}
	c.mu.Lock()
	if _, exists := c.entries[record.ID]; exists {
		c.mu.Unlock()
		return false
	}
	c.entries[record.ID] = record.Clone()
	listeners := make([]func(domain.Ingredient), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(record.Clone())
	}
	return true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Snapshot() map[string]domain.Ingredient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.Ingredient, len(c.entries))
	for id, record := range c.entries {
		out[id] = record.Clone()
	}
	return out
}

// Subscribe registers fn to receive every record added after the call.
// The returned function removes the subscription.
func (c *Cache) Subscribe(fn func(domain.Ingredient)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}
