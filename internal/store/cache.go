package store

import "sync"

// emailCache is the read-through cache for user emails. It is owned by
// the Store and invalidated whenever the user's credentials change, so no
// package-level state leaks between components.
type emailCache struct {
	mu     sync.RWMutex
	emails map[int64]string
}

func newEmailCache() *emailCache {
	return &emailCache{emails: make(map[int64]string)}
}

func (c *emailCache) Get(userID int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	email, ok := c.emails[userID]
	return email, ok
}

func (c *emailCache) Put(userID int64, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails[userID] = email
}

func (c *emailCache) Invalidate(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.emails, userID)
}
