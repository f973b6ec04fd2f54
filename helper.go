package filterable

import (
	"errors"
)

// ErrFoundCircle is returned by InherCircle when role inheritance loops.
var ErrFoundCircle = errors.New("found circle")

// WalkHandler is called for every role by Walk.
type WalkHandler[T comparable] func(Role[T], []T) error

// Walk calls h for every role with its parents. It stops at the first error.
func Walk[T comparable](rbac *RBAC[T], h WalkHandler[T]) error {
	if h == nil {
		return nil
	}
	rbac.mutex.RLock()
	type entry struct {
		role    Role[T]
		parents []T
	}
	entries := make([]entry, 0, len(rbac.roles))
	for id, role := range rbac.roles {
		entries = append(entries, entry{role: role, parents: rbac.parentsOf(id)})
	}
	rbac.mutex.RUnlock()

	for _, e := range entries {
		if err := h(e.role, e.parents); err != nil {
			return err
		}
	}
	return nil
}

// InherCircle returns ErrFoundCircle if any role inherits from itself.
func InherCircle[T comparable](rbac *RBAC[T]) error {
	rbac.mutex.RLock()
	defer rbac.mutex.RUnlock()

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[T]int, len(rbac.roles))
	var visit func(id T) bool
	visit = func(id T) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		for parent := range rbac.parents[id] {
			if visit(parent) {
				return true
			}
		}
		state[id] = done
		return false
	}
	for id := range rbac.roles {
		if visit(id) {
			return ErrFoundCircle
		}
	}
	return nil
}

// AnyGranted reports whether one of roles is granted p.
func AnyGranted[T comparable](rbac *RBAC[T], roles []T, p Permission[T], assert AssertionFunc[T]) bool {
	for _, role := range roles {
		if rbac.IsGranted(role, p, assert) {
			return true
		}
	}
	return false
}

// AllGranted reports whether every role is granted p.
func AllGranted[T comparable](rbac *RBAC[T], roles []T, p Permission[T], assert AssertionFunc[T]) bool {
	for _, role := range roles {
		if !rbac.IsGranted(role, p, assert) {
			return false
		}
	}
	return true
}
