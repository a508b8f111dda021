package server

import (
	"log"
	"sync"
)

// Registry tracks which live connections belong to which scope. It is the
// only shared mutable structure in the chat core; every mutation and read
// goes through its mutex. Operations never fail observably: registering
// is unconditional, unregistering an unknown connection is a no-op and a
// lookup for an unknown scope returns an empty snapshot.
type Registry struct {
	log      *log.Logger
	mu       sync.Mutex
	scopes   map[string]map[*Client]struct{}
	byClient map[*Client]string
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		log:      logger,
		scopes:   make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]string),
	}
}

// Register adds the connection to the scope's set. Multiple connections
// per user are allowed (multi-tab). Returns true when the scope had no
// connections before this one.
func (r *Registry) Register(scopeKey string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.scopes[scopeKey]
	if !ok {
		set = make(map[*Client]struct{})
		r.scopes[scopeKey] = set
	}
	set[c] = struct{}{}
	r.byClient[c] = scopeKey

	r.log.Printf("registered connection %s for %q (user %q)", c.id, scopeKey, c.user.Username)
	return !ok
}

// Unregister removes the connection from whatever scope it belongs to.
// Idempotent: a second call, or a call for a connection that was never
// registered, does nothing. Returns whether the connection was removed
// and whether its scope is now empty.
func (r *Registry) Unregister(c *Client) (removed, scopeEmptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scopeKey, ok := r.byClient[c]
	if !ok {
		return false, false
	}

	delete(r.byClient, c)
	set := r.scopes[scopeKey]
	delete(set, c)
	if len(set) == 0 {
		delete(r.scopes, scopeKey)
		scopeEmptied = true
	}

	r.log.Printf("unregistered connection %s from %q", c.id, scopeKey)
	return true, scopeEmptied
}

// ConnectionsFor returns a snapshot of the connections currently
// registered for the scope, never a live view.
func (r *Registry) ConnectionsFor(scopeKey string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.scopes[scopeKey]
	if len(set) == 0 {
		return nil
	}

	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}

	return clients
}

func (r *Registry) NumConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byClient)
}

func (r *Registry) NumScopes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}
