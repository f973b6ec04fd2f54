package filterable

import (
	"path"
	"strings"

	"github.com/fy0/filterable/filter"
)

// Permission is the interface of all permissions.
type Permission[T comparable] interface {
	ID() T
	// Match reports whether this (assigned) permission covers the requested one.
	Match(Permission[T]) bool
}

// Permissions is a map of permissions keyed by ID.
type Permissions[T comparable] map[T]Permission[T]

// StdPermission matches requested permissions by ID.
type StdPermission[T comparable] struct {
	SID T `json:"id"`
}

// NewPermission returns a StdPermission.
func NewPermission[T comparable](id T) Permission[T] {
	return StdPermission[T]{SID: id}
}

// ID returns the identity of the permission.
func (p StdPermission[T]) ID() T {
	return p.SID
}

// Match reports whether a has the same ID.
func (p StdPermission[T]) Match(a Permission[T]) bool {
	return p.SID == a.ID()
}

// FieldPermissionID names the permission checked when a filter reads a
// field or association, e.g. "read:user.email".
func FieldPermissionID(action filter.Action, ref filter.Ref) string {
	return string(action) + ":" + ref.String()
}

// FieldPermission grants access to fields and associations through a
// path.Match pattern over FieldPermissionID, such as "read:user.*" or
// "read:*.name".
type FieldPermission struct {
	Pattern string `json:"pattern"`
}

// NewFieldPermission returns a FieldPermission. Patterns without an action
// prefix apply to reads.
func NewFieldPermission(pattern string) FieldPermission {
	if !strings.Contains(pattern, ":") {
		pattern = string(filter.ActionRead) + ":" + pattern
	}
	return FieldPermission{Pattern: pattern}
}

// ID returns the pattern.
func (p FieldPermission) ID() string {
	return p.Pattern
}

// Match reports whether the requested permission ID matches the pattern.
func (p FieldPermission) Match(a Permission[string]) bool {
	if a.ID() == p.Pattern {
		return true
	}
	ok, err := path.Match(p.Pattern, a.ID())
	return err == nil && ok
}
