package core

import "sync"

// Membership is a connection's current room assignment.
type Membership struct {
	RoomID string
	Role   Role
}

// MembershipRegistry maps live connections to their room membership.
type MembershipRegistry interface {
	Record(connID, roomID string, role Role)
	Lookup(connID string) (Membership, bool)
	Remove(connID string) (Membership, bool)
}

// Registry is the in-process MembershipRegistry.
type Registry struct {
	mu      sync.RWMutex
	members map[string]Membership
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[string]Membership)}
}

// Record stores the membership, replacing any previous one.
func (r *Registry) Record(connID, roomID string, role Role) {
	r.mu.Lock()
	r.members[connID] = Membership{RoomID: roomID, Role: role}
	r.mu.Unlock()
}

// Lookup returns the membership for a connection.
func (r *Registry) Lookup(connID string) (Membership, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[connID]
	return m, ok
}

// Remove deletes and returns the membership. Unknown ids are a no-op.
func (r *Registry) Remove(connID string) (Membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if ok {
		delete(r.members, connID)
	}
	return m, ok
}

// Len returns the number of live memberships.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
