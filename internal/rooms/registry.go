// Package rooms tracks chat-room membership by connection handle and the
// typing indicators shown inside rooms.
package rooms

import (
	"sort"

	"github.com/mossy-p/call-signaling/internal/models"
)

// Registry maps room IDs to their member handles, with a reverse index
// so a disconnecting handle can leave all its rooms at once. Not safe for
// concurrent use.
type Registry struct {
	rooms    map[string]map[models.Handle]struct{}
	byHandle map[models.Handle]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[models.Handle]struct{}),
		byHandle: make(map[models.Handle]map[string]struct{}),
	}
}

// Join adds handle to roomID, creating the room if needed. It reports
// whether the handle was newly added.
func (r *Registry) Join(roomID string, handle models.Handle) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[models.Handle]struct{})
		r.rooms[roomID] = members
	}
	if _, already := members[handle]; already {
		return false
	}
	members[handle] = struct{}{}

	joined, ok := r.byHandle[handle]
	if !ok {
		joined = make(map[string]struct{})
		r.byHandle[handle] = joined
	}
	joined[roomID] = struct{}{}
	return true
}

// Leave removes handle from roomID and deletes the room once empty. It
// reports whether the handle was a member.
func (r *Registry) Leave(roomID string, handle models.Handle) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, member := members[handle]; !member {
		return false
	}
	delete(members, handle)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}

	if joined, ok := r.byHandle[handle]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.byHandle, handle)
		}
	}
	return true
}

// LeaveAll removes handle from every room and returns the rooms it left.
func (r *Registry) LeaveAll(handle models.Handle) []string {
	left := r.RoomsOf(handle)
	for _, roomID := range left {
		r.Leave(roomID, handle)
	}
	return left
}

// Members returns the handles currently in roomID, sorted.
func (r *Registry) Members(roomID string) []models.Handle {
	members := r.rooms[roomID]
	out := make([]models.Handle, 0, len(members))
	for h := range members {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Contains(roomID string, handle models.Handle) bool {
	_, ok := r.rooms[roomID][handle]
	return ok
}

// RoomsOf returns the rooms handle belongs to, sorted.
func (r *Registry) RoomsOf(handle models.Handle) []string {
	joined := r.byHandle[handle]
	out := make([]string, 0, len(joined))
	for roomID := range joined {
		out = append(out, roomID)
	}
	sort.Strings(out)
	return out
}

// Size returns the member count of roomID.
func (r *Registry) Size(roomID string) int {
	return len(r.rooms[roomID])
}

// Len returns the number of non-empty rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}
