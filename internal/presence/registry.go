// Package presence maps durable user identities to the connection handle
// currently considered canonical for them.
package presence

import (
	"sort"

	"github.com/mossy-p/call-signaling/internal/models"
)

// Registry keeps a forward (user → handle) and reverse (handle → user)
// map in lockstep. It is not safe for concurrent use; the signaling hub
// serializes every access.
type Registry struct {
	byUser   map[string]models.Handle
	byHandle map[models.Handle]string
}

// Displaced describes the mappings a RegisterOnline call replaced.
// Handle is the identity's previous handle, UserID the handle's previous
// identity. Either is empty when nothing was replaced.
type Displaced struct {
	Handle models.Handle
	UserID string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]models.Handle),
		byHandle: make(map[models.Handle]string),
	}
}

// RegisterOnline makes handle the canonical connection for userID,
// superseding any earlier pairing of either side.
func (r *Registry) RegisterOnline(userID string, handle models.Handle) Displaced {
	var displaced Displaced

	if old, ok := r.byUser[userID]; ok && old != handle {
		delete(r.byHandle, old)
		displaced.Handle = old
	}
	if prev, ok := r.byHandle[handle]; ok && prev != userID {
		delete(r.byUser, prev)
		displaced.UserID = prev
	}

	r.byUser[userID] = handle
	r.byHandle[handle] = userID
	return displaced
}

// Lookup returns the live handle for userID.
func (r *Registry) Lookup(userID string) (models.Handle, bool) {
	h, ok := r.byUser[userID]
	return h, ok
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.byUser[userID]
	return ok
}

// UserOf returns the identity announced on handle.
func (r *Registry) UserOf(handle models.Handle) (string, bool) {
	u, ok := r.byHandle[handle]
	return u, ok
}

// UnregisterByHandle removes both directions of handle's pairing and
// returns the freed identity.
func (r *Registry) UnregisterByHandle(handle models.Handle) (string, bool) {
	userID, ok := r.byHandle[handle]
	if !ok {
		return "", false
	}
	delete(r.byHandle, handle)
	if r.byUser[userID] == handle {
		delete(r.byUser, userID)
	}
	return userID, true
}

func (r *Registry) Count() int {
	return len(r.byUser)
}

// OnlineUsers returns the online identities in sorted order.
func (r *Registry) OnlineUsers() []string {
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
