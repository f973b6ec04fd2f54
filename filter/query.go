package filter

import (
	"fmt"
	"strconv"
)

// JoinKind is the SQL join type.
type JoinKind string

const (
	JoinLeft  JoinKind = "LEFT"
	JoinInner JoinKind = "INNER"
)

func (k JoinKind) stronger(other JoinKind) JoinKind {
	if k == JoinInner || other == JoinInner {
		return JoinInner
	}
	return JoinLeft
}

// Join is one planned or existing join of a query.
type Join struct {
	Kind JoinKind
	// Parent is the alias the join hangs off.
	Parent       string
	ParentEntity string
	// Relation is the association name on the parent entity.
	Relation string
	Alias    string
	Target   string
	Table    string
	// On is the join condition.
	On Predicate
	// With is an extra condition, e.g. the locale of a translation join.
	With Predicate
	// Level is the nesting depth of the join, 1 for joins off the root alias.
	Level int

	locale       string
	localeColumn string
}

// Expression renders the join path, e.g. "u.company".
func (j Join) Expression() string {
	return j.Parent + "." + j.Relation
}

// Condition returns On combined with With.
func (j Join) Condition() Predicate {
	switch {
	case j.On == nil:
		return j.With
	case j.With == nil:
		return j.On
	default:
		return &And{Terms: []Predicate{j.On, j.With}}
	}
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column     Column
	Descending bool
}

// Parameter is a named bound value.
type Parameter struct {
	Name  string
	Value any
	Type  FieldType
}

// ParameterBinder binds a value and returns the parameter name to reference.
type ParameterBinder interface {
	Bind(value any, typ FieldType) string
}

// Binder is a ParameterBinder naming parameters p1, p2, ... after an offset.
type Binder struct {
	offset int
	params []Parameter
}

// NewBinder returns a binder whose first parameter is p<offset+1>.
func NewBinder(offset int) *Binder {
	return &Binder{offset: offset}
}

// Bind implements ParameterBinder.
func (b *Binder) Bind(value any, typ FieldType) string {
	name := paramName(b.offset + len(b.params) + 1)
	b.params = append(b.params, Parameter{Name: name, Value: value, Type: typ})
	return name
}

// Params returns the bound parameters in binding order.
func (b *Binder) Params() []Parameter {
	return append([]Parameter(nil), b.params...)
}

func paramName(n int) string {
	return "p" + strconv.Itoa(n)
}

// Query is the relational query a filter is merged into: a root entity with
// an alias, joins, a WHERE predicate, ordering and bound parameters.
//
// Contributions from filters, search and sort are computed on a scratch
// query (Scratch), recorded with AddMerge and folded in by Resolve.
type Query struct {
	Entity  string
	Alias   string
	Joins   []Join
	Where   Predicate
	OrderBy []OrderBy
	Params  []Parameter
	Limit   int
	Offset  int

	paramOffset int
	merges      []*Query
}

// NewQuery starts a query selecting entity under alias.
func NewQuery(entity, alias string) *Query {
	return &Query{Entity: entity, Alias: alias}
}

// Bind implements ParameterBinder.
func (q *Query) Bind(value any, typ FieldType) string {
	name := paramName(q.paramOffset + len(q.Params) + 1)
	q.Params = append(q.Params, Parameter{Name: name, Value: value, Type: typ})
	return name
}

func (q *Query) nextParamOffset() int {
	n := q.paramOffset + len(q.Params)
	for _, m := range q.merges {
		n += len(m.Params)
	}
	return n
}

// Scratch returns an empty query on the same entity and alias whose
// parameter names continue after the ones already bound or pending.
func (q *Query) Scratch() *Query {
	return &Query{
		Entity:      q.Entity,
		Alias:       q.Alias,
		paramOffset: q.nextParamOffset(),
	}
}

// AddJoin appends a join, for callers building the base query by hand.
func (q *Query) AddJoin(j Join) {
	if j.Level == 0 {
		j.Level = 1
	}
	q.Joins = append(q.Joins, j)
}

// AndWhere conjoins p with the current WHERE predicate.
func (q *Query) AndWhere(p Predicate) {
	q.Where, _ = Merge(q.Where, nil, p, nil)
}

// Contributes reports whether a scratch query carries anything to merge.
func Contributes(scratch *Query) bool {
	if scratch == nil {
		return false
	}
	return scratch.Where != nil || len(scratch.Joins) != 0 || len(scratch.OrderBy) != 0
}

// AddMerge records scratch as a pending merge. It returns false when the
// scratch query contributes nothing.
func (q *Query) AddMerge(scratch *Query) bool {
	if !Contributes(scratch) {
		return false
	}
	q.merges = append(q.merges, scratch)
	return true
}

// Pending reports whether merges are waiting for Resolve.
func (q *Query) Pending() bool {
	return len(q.merges) != 0
}

// Resolve folds all pending merges into the query in recording order.
// Parameters whose names collide with already bound ones are renamed.
func (q *Query) Resolve() error {
	merges := q.merges
	q.merges = nil
	for _, m := range merges {
		if m.Entity != q.Entity || m.Alias != q.Alias {
			return fmt.Errorf("filter: cannot merge %s %s into %s %s", m.Entity, m.Alias, q.Entity, q.Alias)
		}
		where, joins, params := q.renameParams(m)
		q.Where, q.Joins = Merge(q.Where, q.Joins, where, joins)
		q.Params = append(q.Params, params...)
		q.OrderBy = append(q.OrderBy, m.OrderBy...)
	}
	return nil
}

func (q *Query) renameParams(m *Query) (Predicate, []Join, []Parameter) {
	taken := make(map[string]bool, len(q.Params))
	for _, p := range q.Params {
		taken[p.Name] = true
	}
	renames := map[string]string{}
	params := make([]Parameter, 0, len(m.Params))
	next := q.paramOffset + len(q.Params) + len(m.Params)
	for _, p := range m.Params {
		if taken[p.Name] {
			for {
				next++
				if !taken[paramName(next)] {
					break
				}
			}
			renames[p.Name] = paramName(next)
			p.Name = paramName(next)
		}
		taken[p.Name] = true
		params = append(params, p)
	}
	if len(renames) == 0 {
		return m.Where, m.Joins, params
	}

	rename := func(p Predicate) Predicate {
		if p == nil {
			return nil
		}
		p = clonePredicate(p)
		walkParams(p, func(prm *Param) {
			if to, ok := renames[prm.Name]; ok {
				prm.Name = to
			}
		})
		return p
	}
	joins := make([]Join, len(m.Joins))
	for i, j := range m.Joins {
		j.On = rename(j.On)
		j.With = rename(j.With)
		joins[i] = j
	}
	return rename(m.Where), joins, params
}

// knownJoins returns the query joins followed by the joins of pending merges.
func (q *Query) knownJoins() []Join {
	if len(q.merges) == 0 {
		return q.Joins
	}
	joins := append([]Join(nil), q.Joins...)
	for _, m := range q.merges {
		joins = append(joins, m.Joins...)
	}
	return joins
}

// findJoin returns the index of the join for (parent, relation).
func findJoin(joins []Join, parent, relation string) (int, bool) {
	for i, j := range joins {
		if j.Parent == parent && j.Relation == relation {
			return i, true
		}
	}
	return -1, false
}
