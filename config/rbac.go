package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fy0/filterable"
)

type RBACConfig struct {
	Roles map[string]RoleConfig `yaml:"roles"`
	// UserHeader carries the id substituted for {{ user_id }} in scopes.
	UserHeader string `yaml:"user_header"`
}

type RoleConfig struct {
	Parents []string `yaml:"parents"`
	// Fields are path patterns such as "user.*" granting read access.
	Fields      []string `yaml:"fields"`
	Permissions []string `yaml:"permissions"`
	// Scopes restrict a permission to the rows matched by a filter tree.
	Scopes map[string]any `yaml:"scopes"`
}

// Enabled reports whether any role is configured.
func (c RBACConfig) Enabled() bool {
	return len(c.Roles) > 0
}

// Build returns the configured role graph. Inheritance circles are rejected.
func (c RBACConfig) Build() (*filterable.RBAC[string], error) {
	rbac := filterable.New[string]()

	ids := make([]string, 0, len(c.Roles))
	for id := range c.Roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rc := c.Roles[id]
		role := filterable.NewRole(id)
		for _, pattern := range rc.Fields {
			if err := role.Assign(filterable.NewFieldPermission(pattern)); err != nil {
				return nil, fmt.Errorf("role %s: %w", id, err)
			}
		}
		for _, perm := range rc.Permissions {
			if _, scoped := rc.Scopes[perm]; scoped {
				continue
			}
			if err := role.Assign(filterable.NewPermission(perm)); err != nil {
				return nil, fmt.Errorf("role %s: %w", id, err)
			}
		}
		for perm, tree := range rc.Scopes {
			data, err := json.Marshal(tree)
			if err != nil {
				return nil, fmt.Errorf("role %s: scope %s: %w", id, perm, err)
			}
			if err := role.Assign(filterable.NewScopePermission(perm, string(data))); err != nil {
				return nil, fmt.Errorf("role %s: %w", id, err)
			}
		}
		if err := rbac.Add(role); err != nil {
			return nil, err
		}
	}

	for _, id := range ids {
		if parents := c.Roles[id].Parents; len(parents) > 0 {
			if err := rbac.SetParents(id, parents); err != nil {
				return nil, fmt.Errorf("role %s: %w", id, err)
			}
		}
	}
	if err := filterable.InherCircle(rbac); err != nil {
		return nil, err
	}
	return rbac, nil
}
