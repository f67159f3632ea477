package realtime

import "sync"

// Subscriber is a room member. Send must not block.
type Subscriber interface {
	ID() string
	Send(msg []byte) bool
}

// RoomRegistry maps board IDs to the subscribers viewing them.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Subscriber
	joined map[string]map[string]struct{}
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[string]map[string]Subscriber),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join adds s to room. It reports false when s was already a member.
func (r *RoomRegistry) Join(room string, s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		r.rooms[room] = members
	}
	if _, exists := members[s.ID()]; exists {
		return false
	}
	members[s.ID()] = s

	rooms, ok := r.joined[s.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[s.ID()] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes the subscriber from one room.
func (r *RoomRegistry) Leave(room, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, id)
}

// LeaveAll removes the subscriber from every room and returns those rooms.
func (r *RoomRegistry) LeaveAll(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room := range r.joined[id] {
		if r.leaveLocked(room, id) {
			left = append(left, room)
		}
	}
	return left
}

func (r *RoomRegistry) leaveLocked(room, id string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[id]; !exists {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	if rooms, ok := r.joined[id]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, id)
		}
	}
	return true
}

// Members returns a snapshot of the subscribers in room.
func (r *RoomRegistry) Members(room string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Subscriber, 0, len(r.rooms[room]))
	for _, s := range r.rooms[room] {
		members = append(members, s)
	}
	return members
}

// Rooms lists the rooms id has joined.
func (r *RoomRegistry) Rooms(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.joined[id]))
	for room := range r.joined[id] {
		rooms = append(rooms, room)
	}
	return rooms
}

// Broadcast delivers msg to every member of room except exceptID and returns
// the number of accepted deliveries. Sends happen outside the lock because a
// failing Send may leave rooms.
func (r *RoomRegistry) Broadcast(room string, msg []byte, exceptID string) int {
	delivered := 0
	for _, s := range r.Members(room) {
		if s.ID() == exceptID {
			continue
		}
		if s.Send(msg) {
			delivered++
		}
	}
	return delivered
}
