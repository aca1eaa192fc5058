package websocket

import "sync"

// registry tracks the set of currently open connections. A connection is in
// the registry exactly while it is believed sendable: added once after
// accept, removed once on close, transport error, or the shutdown sweep,
// whichever fires first.
//
// Accept, read-loop exit and broadcast pruning run on different goroutines,
// so mutation is serialized behind an explicit lock.
type registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]*Client)}
}

// Add tracks a newly accepted connection.
func (r *registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID()] = c
}

// Remove untracks a connection. Returns true on the first removal, false for
// every later call with the same connection.
func (r *registry) Remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID()]; !ok {
		return false
	}
	delete(r.clients, c.ID())
	return true
}

// Get returns a tracked connection by ID.
func (r *registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Snapshot returns a point-in-time copy of the tracked connections, safe to
// iterate while connections are concurrently added or removed.
func (r *registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of tracked connections.
func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Clear removes every tracked connection and returns the removed set.
func (r *registry) Clear() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.clients = make(map[string]*Client)
	return out
}
