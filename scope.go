package filterable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/fy0/filterable/filter"
)

// Scoper is implemented by permissions restricting the rows they grant.
type Scoper interface {
	// ScopeFilter returns filter JSON, or nil when every row is granted.
	ScopeFilter() json.RawMessage
}

// ScopePermission is a permission granting only the rows matched by Filter.
//
// String values of the form "{{ name }}" are replaced by the variables
// passed to BuildScope, e.g. {"field": "owner_id", "value": "{{ user_id }}"}.
type ScopePermission[T comparable] struct {
	StdPermission[T]
	Filter json.RawMessage `json:"filter,omitempty"`
}

// NewScopePermission returns a ScopePermission. An empty filter grants all rows.
func NewScopePermission[T comparable](id T, filterJSON string) ScopePermission[T] {
	p := ScopePermission[T]{StdPermission: StdPermission[T]{SID: id}}
	if filterJSON != "" {
		p.Filter = json.RawMessage(filterJSON)
	}
	return p
}

// ScopeFilter implements Scoper.
func (p ScopePermission[T]) ScopeFilter() json.RawMessage {
	return p.Filter
}

// Scope is a row restriction derived from granted permissions.
type Scope struct {
	// Node is nil when every row is visible.
	Node filter.Node
	// Denied is set when no role grants the requested permissions.
	Denied bool
}

// BuildScope combines the row scopes of roles for permissions.
//
// A role contributes only when it is granted every requested permission.
// Scopes of permissions matching the same request, on the role or its
// ancestors, are ORed; requested permissions are ANDed within a role and
// roles are ORed. A matching permission without a scope grants all rows.
func BuildScope[T comparable](rbac *RBAC[T], roles []T, permissions []Permission[T], vars map[string]any) (Scope, error) {
	var (
		granted bool
		ors     []filter.Node
	)
	for _, role := range roles {
		node, ok, err := roleScope(rbac, role, permissions, vars)
		if err != nil {
			return Scope{}, err
		}
		if !ok {
			continue
		}
		granted = true
		if node == nil {
			// One unrestricted role lifts every other scope.
			return Scope{}, nil
		}
		ors = append(ors, node)
	}
	if !granted {
		return Scope{Denied: true}, nil
	}
	return Scope{Node: orNodes(ors)}, nil
}

func roleScope[T comparable](rbac *RBAC[T], role T, permissions []Permission[T], vars map[string]any) (filter.Node, bool, error) {
	var ands []filter.Node
	for _, p := range permissions {
		matched, err := rbac.matching(role, p)
		if errors.Is(err, ErrRoleNotExist) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if len(matched) == 0 {
			return nil, false, nil
		}

		var variants []filter.Node
		unrestricted := false
		for _, m := range matched {
			node, err := permissionScope(m, vars)
			if err != nil {
				return nil, false, fmt.Errorf("scope of %v: %w", m.ID(), err)
			}
			if node == nil {
				unrestricted = true
				break
			}
			variants = append(variants, node)
		}
		if unrestricted {
			continue
		}
		ands = append(ands, orNodes(variants))
	}
	if len(ands) == 0 {
		return nil, true, nil
	}
	if len(ands) == 1 {
		return ands[0], true, nil
	}
	return filter.NewConditionNode(filter.LogicalAnd, ands...), true, nil
}

func permissionScope[T comparable](p Permission[T], vars map[string]any) (filter.Node, error) {
	s, ok := p.(Scoper)
	if !ok {
		return nil, nil
	}
	data := s.ScopeFilter()
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &filter.ParseError{Kind: filter.ErrKindInvalidJSON, Err: err}
	}
	raw, err := substitute(raw, vars)
	if err != nil {
		return nil, err
	}
	return filter.Parse(raw, false)
}

var placeholderRe = regexp.MustCompile(`^\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}$`)

func substitute(raw any, vars map[string]any) (any, error) {
	switch v := raw.(type) {
	case string:
		m := placeholderRe.FindStringSubmatch(v)
		if m == nil {
			return v, nil
		}
		val, ok := vars[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown scope variable %q", m[1])
		}
		return val, nil
	case map[string]any:
		for k, elem := range v {
			out, err := substitute(elem, vars)
			if err != nil {
				return nil, err
			}
			v[k] = out
		}
		return v, nil
	case []any:
		for i, elem := range v {
			out, err := substitute(elem, vars)
			if err != nil {
				return nil, err
			}
			v[i] = out
		}
		return v, nil
	}
	return raw, nil
}

func orNodes(nodes []filter.Node) filter.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return filter.NewConditionNode(filter.LogicalOr, nodes...)
}

// Apply narrows q to the scope. A denied scope selects nothing.
func (s Scope) Apply(engine *filter.Engine, q *filter.Query, level filter.Level) (*filter.Result, error) {
	if s.Denied {
		return nil, engine.Deny(q)
	}
	if s.Node == nil {
		return nil, nil
	}
	return engine.ApplyNode(q, s.Node, level)
}

// Matches reports whether row, read as a row of q, is inside the scope.
func (s Scope) Matches(engine *filter.Engine, q *filter.Query, row filter.Row, level filter.Level) (bool, error) {
	if s.Denied {
		return false, nil
	}
	if s.Node == nil {
		return true, nil
	}
	c, err := engine.Compile(s.Node, q, level)
	if err != nil {
		return false, err
	}
	return c.Matches(row)
}
