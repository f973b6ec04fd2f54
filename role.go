package filterable

import (
	"sync"
)

// Roles is a map of roles keyed by ID.
type Roles[T comparable] map[T]Role[T]

// NewRole returns an empty role.
func NewRole[T comparable](id T) Role[T] {
	return Role[T]{
		mutex:       new(sync.RWMutex),
		ID:          id,
		permissions: make(Permissions[T]),
	}
}

// Role holds a set of permissions. Copies of a Role share the same
// permission set.
type Role[T comparable] struct {
	mutex *sync.RWMutex
	// ID is the serialisable identity of the role.
	ID          T `json:"id"`
	permissions Permissions[T]
}

func (role *Role[T]) init() {
	if role.mutex == nil {
		role.mutex = new(sync.RWMutex)
	}
	if role.permissions == nil {
		role.permissions = make(Permissions[T])
	}
}

// Assign adds a permission to the role, replacing one with the same ID.
func (role *Role[T]) Assign(p Permission[T]) error {
	role.init()
	role.mutex.Lock()
	role.permissions[p.ID()] = p
	role.mutex.Unlock()
	return nil
}

// Permit reports whether one of the role's own permissions matches p.
func (role *Role[T]) Permit(p Permission[T]) bool {
	if p == nil {
		return false
	}
	return len(role.matching(p, true)) != 0
}

// matching returns the role's permissions matching p. With first set it
// stops at the first match.
func (role *Role[T]) matching(p Permission[T], first bool) []Permission[T] {
	role.init()
	role.mutex.RLock()
	defer role.mutex.RUnlock()

	var out []Permission[T]
	// Exact IDs are map keys; pattern permissions need the full scan.
	if rp, ok := role.permissions[p.ID()]; ok && rp.Match(p) {
		if first {
			return []Permission[T]{rp}
		}
		out = append(out, rp)
	}
	for id, rp := range role.permissions {
		if id == p.ID() || !rp.Match(p) {
			continue
		}
		out = append(out, rp)
		if first {
			break
		}
	}
	return out
}

// Revoke removes the permission with p's ID.
func (role *Role[T]) Revoke(p Permission[T]) error {
	role.init()
	role.mutex.Lock()
	delete(role.permissions, p.ID())
	role.mutex.Unlock()
	return nil
}

// Permissions returns the role's permissions in no particular order.
func (role *Role[T]) Permissions() []Permission[T] {
	role.init()
	role.mutex.RLock()
	result := make([]Permission[T], 0, len(role.permissions))
	for _, p := range role.permissions {
		result = append(result, p)
	}
	role.mutex.RUnlock()
	return result
}
