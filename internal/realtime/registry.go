package realtime

import (
	"sync"
)

// Registry maps a user id to its single live connection. One connection
// per user is retained: registering a new connection for an already
// registered user replaces the mapping (last-writer-wins) and the
// displaced connection is returned to the caller for closing.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Register inserts or replaces the mapping for userId and returns the
// displaced client, if any.
func (r *Registry) Register(userId string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.clients[userId]
	r.clients[userId] = c
	if old == c {
		return nil
	}
	return old
}

func (r *Registry) Get(userId string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[userId]
	return c, ok
}

func (r *Registry) Remove(userId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, userId)
}

// RemoveIf deletes the mapping only if it still points at c. A displaced
// connection tearing down late cannot evict its replacement.
func (r *Registry) RemoveIf(userId string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.clients[userId]; ok && cur == c {
		delete(r.clients, userId)
		return true
	}
	return false
}

// ForEach calls fn for every live mapping. The snapshot is taken under
// the read lock so fn may call back into the registry.
func (r *Registry) ForEach(fn func(userId string, c *Client)) {
	r.mu.RLock()
	snapshot := make(map[string]*Client, len(r.clients))
	for id, c := range r.clients {
		snapshot[id] = c
	}
	r.mu.RUnlock()

	for id, c := range snapshot {
		fn(id, c)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
