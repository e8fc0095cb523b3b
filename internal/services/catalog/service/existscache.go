package service

import "sync"

// ExistsCache memoizes derived-table existence per view name.
// It is explicit process state: constructed in main, injected where needed,
// and invalidated on create and drop so tests can reset it deterministically.
type ExistsCache struct {
	mu    sync.RWMutex
	known map[string]bool
}

// NewExistsCache constructs an empty cache
func NewExistsCache() *ExistsCache {
	return &ExistsCache{known: make(map[string]bool)}
}

// Lookup returns the cached answer for name, ok reports whether one exists
func (c *ExistsCache) Lookup(name string) (exists, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exists, ok = c.known[name]
	return
}

// Store records the answer for name
func (c *ExistsCache) Store(name string, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[name] = exists
}

// Invalidate forgets name so the next lookup goes to the table store
func (c *ExistsCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.known, name)
}

// Reset forgets everything
func (c *ExistsCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known = make(map[string]bool)
}
