// Package filterable compiles client-supplied JSON filters into safe
// relational predicates and gates them with role based access control.
//
// The filter engine lives in the filter package. This package provides the
// RBAC model used as its authorization checker and row scopes expressed as
// filter trees attached to permissions.
package filterable

import (
	"errors"
	"sync"
)

var (
	// ErrRoleNotExist occurs if a role cannot be found.
	ErrRoleNotExist = errors.New("role does not exist")
	// ErrRoleExist occurs if a role should not be found.
	ErrRoleExist = errors.New("role has already existed")
)

// AssertionFunc supplies additional checks to IsGranted.
type AssertionFunc[T comparable] func(*RBAC[T], T, Permission[T]) bool

// RBAC holds roles and their inheritance. It is safe for concurrent use.
type RBAC[T comparable] struct {
	mutex   sync.RWMutex
	roles   Roles[T]
	parents map[T]map[T]struct{}
}

// New returns an empty RBAC.
func New[T comparable]() *RBAC[T] {
	return &RBAC[T]{
		roles:   make(Roles[T]),
		parents: make(map[T]map[T]struct{}),
	}
}

// SetParents replaces the parents of role id.
func (rbac *RBAC[T]) SetParents(id T, parents []T) error {
	rbac.mutex.Lock()
	defer rbac.mutex.Unlock()
	if _, ok := rbac.roles[id]; !ok {
		return ErrRoleNotExist
	}
	for _, parent := range parents {
		if _, ok := rbac.roles[parent]; !ok {
			return ErrRoleNotExist
		}
	}
	set := make(map[T]struct{}, len(parents))
	for _, parent := range parents {
		set[parent] = struct{}{}
	}
	rbac.parents[id] = set
	return nil
}

// GetParents returns the parents of role id.
func (rbac *RBAC[T]) GetParents(id T) ([]T, error) {
	rbac.mutex.RLock()
	defer rbac.mutex.RUnlock()
	if _, ok := rbac.roles[id]; !ok {
		return nil, ErrRoleNotExist
	}
	return rbac.parentsOf(id), nil
}

func (rbac *RBAC[T]) parentsOf(id T) []T {
	ids := rbac.parents[id]
	out := make([]T, 0, len(ids))
	for parent := range ids {
		out = append(out, parent)
	}
	return out
}

// SetParent adds parent to the parents of role id.
func (rbac *RBAC[T]) SetParent(id T, parent T) error {
	rbac.mutex.Lock()
	defer rbac.mutex.Unlock()
	if _, ok := rbac.roles[id]; !ok {
		return ErrRoleNotExist
	}
	if _, ok := rbac.roles[parent]; !ok {
		return ErrRoleNotExist
	}
	if _, ok := rbac.parents[id]; !ok {
		rbac.parents[id] = make(map[T]struct{})
	}
	rbac.parents[id][parent] = struct{}{}
	return nil
}

// RemoveParent removes parent from the parents of role id.
func (rbac *RBAC[T]) RemoveParent(id T, parent T) error {
	rbac.mutex.Lock()
	defer rbac.mutex.Unlock()
	if _, ok := rbac.roles[id]; !ok {
		return ErrRoleNotExist
	}
	if _, ok := rbac.roles[parent]; !ok {
		return ErrRoleNotExist
	}
	delete(rbac.parents[id], parent)
	return nil
}

// Add registers a role. Adding an existing ID fails with ErrRoleExist.
func (rbac *RBAC[T]) Add(r Role[T]) error {
	rbac.mutex.Lock()
	defer rbac.mutex.Unlock()
	if _, ok := rbac.roles[r.ID]; ok {
		return ErrRoleExist
	}
	r.init()
	rbac.roles[r.ID] = r
	return nil
}

// Remove deletes a role and every inheritance edge pointing at it.
func (rbac *RBAC[T]) Remove(id T) error {
	rbac.mutex.Lock()
	defer rbac.mutex.Unlock()
	if _, ok := rbac.roles[id]; !ok {
		return ErrRoleNotExist
	}
	delete(rbac.roles, id)
	delete(rbac.parents, id)
	for _, parents := range rbac.parents {
		delete(parents, id)
	}
	return nil
}

// Get returns a role and its parents.
func (rbac *RBAC[T]) Get(id T) (Role[T], []T, error) {
	rbac.mutex.RLock()
	defer rbac.mutex.RUnlock()
	r, ok := rbac.roles[id]
	if !ok {
		return Role[T]{}, nil, ErrRoleNotExist
	}
	return r, rbac.parentsOf(id), nil
}

// IsGranted reports whether role id, directly or through its ancestors,
// holds a permission matching p. A non-nil assert must also pass.
func (rbac *RBAC[T]) IsGranted(id T, p Permission[T], assert AssertionFunc[T]) bool {
	if assert != nil && !assert(rbac, id, p) {
		return false
	}
	rbac.mutex.RLock()
	defer rbac.mutex.RUnlock()
	return rbac.isGranted(id, p, map[T]struct{}{})
}

func (rbac *RBAC[T]) isGranted(id T, p Permission[T], visited map[T]struct{}) bool {
	if _, ok := visited[id]; ok {
		return false
	}
	visited[id] = struct{}{}

	role, ok := rbac.roles[id]
	if !ok {
		return false
	}
	if role.Permit(p) {
		return true
	}
	for parent := range rbac.parents[id] {
		if rbac.isGranted(parent, p, visited) {
			return true
		}
	}
	return false
}

// matching returns every permission matching p held by role id or its
// ancestors, visiting each role once.
func (rbac *RBAC[T]) matching(id T, p Permission[T]) ([]Permission[T], error) {
	rbac.mutex.RLock()
	defer rbac.mutex.RUnlock()
	if _, ok := rbac.roles[id]; !ok {
		return nil, ErrRoleNotExist
	}

	var out []Permission[T]
	visited := map[T]struct{}{}
	var walk func(id T)
	walk = func(id T) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		role, ok := rbac.roles[id]
		if !ok {
			return
		}
		out = append(out, role.matching(p, false)...)
		for parent := range rbac.parents[id] {
			walk(parent)
		}
	}
	walk(id)
	return out, nil
}
