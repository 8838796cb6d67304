package runtime

import (
	"estate-chat/contract"
	"sync"
)

type Set map[string]struct{}

type Registry struct {
	mu          sync.RWMutex
	Sessions    map[string]contract.EventSink // map connection -> Sink
	Connections map[string]Set                // map user -> connections
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:    make(map[string]contract.EventSink),
		Connections: make(map[string]Set),
	}
}

// GetSinksForUsers resolves every live connection of the given users.
// A user listed twice (a self-addressed message) is only resolved once.
func (r *Registry) GetSinksForUsers(userIDs ...string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := make(Set, len(userIDs))
	var activeSinks []contract.EventSink
	for _, userID := range userIDs {
		if _, ok := visited[userID]; ok {
			continue
		}
		visited[userID] = struct{}{}
		for connectionID := range r.Connections[userID] {
			if sink, exists := r.Sessions[connectionID]; exists {
				activeSinks = append(activeSinks, sink)
			}
		}
	}
	return activeSinks
}

// Subscribe registers one connection of a user.
func (r *Registry) Subscribe(userID, connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[connectionID] = sink

	if _, ok := r.Connections[userID]; !ok {
		r.Connections[userID] = make(Set)
	}
	r.Connections[userID][connectionID] = struct{}{}
}

// Unsubscribe removes one connection and drops the user entry once empty.
func (r *Registry) Unsubscribe(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Sessions, connectionID)

	if connections, ok := r.Connections[userID]; ok {
		delete(connections, connectionID)
		if len(connections) == 0 {
			delete(r.Connections, userID)
		}
	}
}

// CountConnections is exposed on the debug endpoint.
func (r *Registry) CountConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Sessions)
}
