package runtime

import (
	"sync"

	"github.com/havaian/gossip/contract"
)

type Set map[string]struct{}

// Registry is the process-wide room channel directory.
// A connection has one sink and may be subscribed to several rooms.
type Registry struct {
	mu              sync.RWMutex
	Sessions        map[string]contract.EventSink // connection -> sink
	RoomMembers     map[string]Set                // room -> connections
	ConnectionRooms map[string]Set                // connection -> rooms
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:        make(map[string]contract.EventSink),
		RoomMembers:     make(map[string]Set),
		ConnectionRooms: make(map[string]Set),
	}
}

// GetSinksForRoom resolves the members of a room into their sinks.
// Returns nil if the room has no members.
func (r *Registry) GetSinksForRoom(roomID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	activeSinks := make([]contract.EventSink, 0, len(members))
	for connectionID := range members {
		if sink, exists := r.Sessions[connectionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe adds a connection to a room. Subscribing twice is a no-op.
func (r *Registry) Subscribe(connectionID, roomID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[connectionID] = sink
	if _, ok := r.RoomMembers[roomID]; !ok {
		r.RoomMembers[roomID] = make(Set)
	}
	r.RoomMembers[roomID][connectionID] = struct{}{}
	if _, ok := r.ConnectionRooms[connectionID]; !ok {
		r.ConnectionRooms[connectionID] = make(Set)
	}
	r.ConnectionRooms[connectionID][roomID] = struct{}{}
}

// Unsubscribe removes a connection from one room. The session is dropped
// once the connection has no room left.
func (r *Registry) Unsubscribe(connectionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leave(connectionID, roomID)
	if len(r.ConnectionRooms[connectionID]) == 0 {
		delete(r.ConnectionRooms, connectionID)
		delete(r.Sessions, connectionID)
	}
}

// UnsubscribeAll removes a closed connection from every room it joined.
func (r *Registry) UnsubscribeAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.ConnectionRooms[connectionID] {
		r.leave(connectionID, roomID)
	}
	delete(r.ConnectionRooms, connectionID)
	delete(r.Sessions, connectionID)
}

// RoomCount and ConnectionCount feed the realtime gauges.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.RoomMembers)
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Sessions)
}

// leave must be called with the lock held.
// Empty sets are removed so rooms nobody watches don't accumulate.
func (r *Registry) leave(connectionID, roomID string) {
	if members, ok := r.RoomMembers[roomID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.RoomMembers, roomID)
		}
	}
	if rooms, ok := r.ConnectionRooms[connectionID]; ok {
		delete(rooms, roomID)
	}
}
