// Package runtime holds the in-process bookkeeping of live connections:
// who is connected, and which rooms each connection is subscribed to.
// Durable state never lives here.
package runtime

import (
	"sync"

	"github.com/vanthaita/piratesocial-chat/contract"
	"github.com/vanthaita/piratesocial-chat/domain"
)

type Set map[string]struct{}

// Registry is the process-wide room -> subscriber mapping. It is mutated by
// join/leave/disconnect and read by every broadcast, so all operations are
// safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]contract.EventSink       // conn id -> sink
	roomSubs  map[domain.RoomID]Set               // room -> conn ids
	connRooms map[string]map[domain.RoomID]struct{} // conn id -> joined rooms
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]contract.EventSink),
		roomSubs:  make(map[domain.RoomID]Set),
		connRooms: make(map[string]map[domain.RoomID]struct{}),
	}
}

// Register records the connection's delivery sink. A connection is
// registered once, at authentication time, before any subscription.
func (r *Registry) Register(connID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = sink
}

// Subscribe adds the connection to the room's broadcast group. The room
// entry is initialized on the fly; subscribing twice is a no-op.
func (r *Registry) Subscribe(connID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		return
	}
	if _, ok := r.roomSubs[roomID]; !ok {
		r.roomSubs[roomID] = make(Set)
	}
	r.roomSubs[roomID][connID] = struct{}{}

	if _, ok := r.connRooms[connID]; !ok {
		r.connRooms[connID] = make(map[domain.RoomID]struct{})
	}
	r.connRooms[connID][roomID] = struct{}{}
}

// Unsubscribe removes the connection from one room's broadcast group,
// cleaning up empty sets so long-lived processes don't accumulate rooms.
func (r *Registry) Unsubscribe(connID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(connID, roomID)
}

func (r *Registry) unsubscribeLocked(connID string, roomID domain.RoomID) {
	if subs, ok := r.roomSubs[roomID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(r.roomSubs, roomID)
		}
	}
	if rooms, ok := r.connRooms[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.connRooms, connID)
		}
	}
}

// Drop removes all bookkeeping for a connection: its sink and every room
// subscription. This is the disconnect path; durable membership is untouched.
func (r *Registry) Drop(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.connRooms[connID] {
		r.unsubscribeLocked(connID, roomID)
	}
	delete(r.connRooms, connID)
	delete(r.sessions, connID)
}

// SinksForRoom snapshots the delivery targets currently subscribed to the
// room. The broadcast delivers to exactly this snapshot: a connection
// joining mid-broadcast will only see the next message.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs, ok := r.roomSubs[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connID := range subs {
		if sink, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}
