package relay

import (
	"errors"
	"sync"
)

var (
	ErrEmptyRoomId = errors.New("empty room id")
	ErrRoomFull    = errors.New("room is full")
)

// Registry tracks live connections and their room membership.
// Rooms are created lazily on the first join and dropped as soon as
// the last member leaves. A connection belongs to at most one room.
//
// One mutex guards the whole structure so member-set mutation and
// broadcast enumeration stay atomic with respect to each other.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*room
	joined     map[string]string // connection id -> room id
	maxMembers int
}

// room members keep arrival order, the first one is
// the oldest still-present member.
type room struct {
	members []string
}

func (r *room) has(id string) bool {
	for _, m := range r.members {
		if m == id {
			return true
		}
	}
	return false
}

func (r *room) remove(id string) {
	for i, m := range r.members {
		if m == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// NewRegistry makes an empty registry.
// The maxMembers param caps the room size, 0 means unlimited.
func NewRegistry(maxMembers int) *Registry {
	return &Registry{
		rooms:      make(map[string]*room, 10),
		joined:     make(map[string]string, 10),
		maxMembers: maxMembers,
	}
}

// Join adds the connection to the room, switching rooms if it was
// a member elsewhere. The capacity check runs before the switch, so
// a rejected join keeps the old membership intact. Returns the
// snapshot of the other members (arrival order) taken atomically
// with the insertion, plus the room that was left on a switch.
// Re-joining the same room is a no-op for the member set, but the
// returned snapshot is still valid for a repeated join notification.
func (r *Registry) Join(id string, roomId string) (others []string, prevRoom string, err error) {
	if roomId == "" {
		return nil, "", ErrEmptyRoomId
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomId]
	if !ok {
		rm = &room{}
	}
	if !rm.has(id) {
		if r.maxMembers > 0 && len(rm.members) >= r.maxMembers {
			return nil, "", ErrRoomFull
		}
		if prev, ok := r.joined[id]; ok && prev != roomId {
			r.leaveLocked(id, prev)
			prevRoom = prev
		}
		rm.members = append(rm.members, id)
		r.rooms[roomId] = rm
	}
	r.joined[id] = roomId

	others = make([]string, 0, len(rm.members)-1)
	for _, m := range rm.members {
		if m != id {
			others = append(others, m)
		}
	}
	return others, prevRoom, nil
}

// Leave removes the connection from its current room, if any.
// Returns the left room id and whether the removal actually happened,
// so a duplicate leave never produces a second notification.
func (r *Registry) Leave(id string) (roomId string, left bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomId, ok := r.joined[id]
	if !ok {
		return "", false
	}
	r.leaveLocked(id, roomId)
	return roomId, true
}

func (r *Registry) leaveLocked(id string, roomId string) {
	delete(r.joined, id)
	rm, ok := r.rooms[roomId]
	if !ok {
		return
	}
	rm.remove(id)
	if len(rm.members) == 0 {
		delete(r.rooms, roomId)
	}
}

// RoomOf returns the current room of the connection.
func (r *Registry) RoomOf(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomId, ok := r.joined[id]
	return roomId, ok
}

// MembersExcluding answers the "who else is here" query,
// in arrival order. A missing room yields an empty list.
func (r *Registry) MembersExcluding(roomId string, excluded string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomId]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(rm.members))
	for _, m := range rm.members {
		if m != excluded {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) HasRoom(roomId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomId]
	return ok
}

func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.joined)
}

// Sweep drops members whose connections are not alive anymore and
// garbage-collects rooms emptied by that. Returns the number of
// removed members. A safety net under the disconnect handler.
func (r *Registry) Sweep(alive func(id string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for roomId, rm := range r.rooms {
		kept := rm.members[:0]
		for _, m := range rm.members {
			if alive(m) {
				kept = append(kept, m)
			} else {
				delete(r.joined, m)
				removed++
			}
		}
		rm.members = kept
		if len(rm.members) == 0 {
			delete(r.rooms, roomId)
		}
	}
	return removed
}
