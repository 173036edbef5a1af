// Package groups implements the delivery-group layer: named channels
// that connections join at connect time and that presence changes and
// notifications are published to. Membership lives only here; it is a
// derived relationship that vanishes with the connection.
package groups

import (
	"encoding/json"
	"sync"

	"presencehub/internal/types"
)

// Registry maps group names to member connections. Joins happen once
// at connect time; Remove tears down every membership for a
// connection, which is the leave-on-disconnect contract.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]*types.WebSocketConnection // group -> conn id -> conn
	joined map[string][]string                              // conn id -> group names
	conns  map[string]*types.WebSocketConnection
}

func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]map[string]*types.WebSocketConnection),
		joined: make(map[string][]string),
		conns:  make(map[string]*types.WebSocketConnection),
	}
}

// Register adds a connection to the registry. Registered connections
// receive global broadcasts even if they join no group.
func (r *Registry) Register(conn *types.WebSocketConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
}

// Join adds a connection to a named group.
func (r *Registry) Join(conn *types.WebSocketConnection, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, exists := r.groups[group]
	if !exists {
		members = make(map[string]*types.WebSocketConnection)
		r.groups[group] = members
	}
	members[conn.ID] = conn
	r.joined[conn.ID] = append(r.joined[conn.ID], group)
}

// Remove drops a connection from every group it joined and from the
// registry itself.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, group := range r.joined[connID] {
		if members, exists := r.groups[group]; exists {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.groups, group)
			}
		}
	}
	delete(r.joined, connID)
	delete(r.conns, connID)
}

// Publish enqueues an event to every member of a group. The payload is
// marshalled once; delivery is per-recipient independent and never
// blocks — a member whose send buffer is full is skipped. It returns
// the number of connections the event was enqueued to.
func (r *Registry) Publish(group string, event types.Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sent := 0
	for _, conn := range r.groups[group] {
		if enqueue(conn, data) {
			sent++
		}
	}
	return sent
}

// PublishTo enqueues an event to a single connection, used for the
// one-time snapshot sent to a newly-joined observer.
func (r *Registry) PublishTo(conn *types.WebSocketConnection, event types.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	return enqueue(conn, data)
}

// Broadcast enqueues an event to every registered connection.
func (r *Registry) Broadcast(event types.Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sent := 0
	for _, conn := range r.conns {
		if enqueue(conn, data) {
			sent++
		}
	}
	return sent
}

// Members returns the current number of connections joined to a group.
func (r *Registry) Members(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// Stats reports registry occupancy for the stats endpoint.
func (r *Registry) Stats() (connections, groupCount int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.groups)
}

func enqueue(conn *types.WebSocketConnection, data []byte) bool {
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}
