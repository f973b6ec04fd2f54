package filterable

import (
	"github.com/fy0/filterable/filter"
)

// Checker grants filter access to fields and associations when one of its
// roles holds a permission matching FieldPermissionID(action, ref).
type Checker struct {
	rbac   *RBAC[string]
	roles  []string
	assert AssertionFunc[string]
}

var _ filter.AuthorizationChecker = (*Checker)(nil)

// NewChecker returns a Checker for the principal holding roles.
func NewChecker(rbac *RBAC[string], roles ...string) *Checker {
	return &Checker{rbac: rbac, roles: append([]string(nil), roles...)}
}

// WithAssertion returns a copy of c that also requires assert to pass.
func (c *Checker) WithAssertion(assert AssertionFunc[string]) *Checker {
	clone := *c
	clone.assert = assert
	return &clone
}

// IsGranted implements filter.AuthorizationChecker.
func (c *Checker) IsGranted(action filter.Action, ref filter.Ref) bool {
	if c == nil || c.rbac == nil {
		return false
	}
	p := NewPermission(FieldPermissionID(action, ref))
	return AnyGranted(c.rbac, c.roles, p, c.assert)
}
