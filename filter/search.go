package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Search narrows q to rows where any of fields contains term. With no
// fields, every filterable string field of the entity is searched; at
// LevelAll only public fields granted by the authorization checker are
// candidates. Explicit fields are validated at level like any other rule.
// An empty term leaves q untouched.
func (e *Engine) Search(q *Query, term string, level Level, fields ...string) (*Result, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if len(fields) == 0 {
		meta, err := e.oracle.Metadata(q.Entity)
		if err != nil {
			return nil, fmt.Errorf("filter: metadata for %q: %w", q.Entity, err)
		}
		candidates := e.searchableFields(meta)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("filter: %s has no searchable fields", q.Entity)
		}
		fields = e.readableFields(meta, candidates, level)
		if len(fields) == 0 {
			e.logger.Debug("search denied", "entity", q.Entity)
			if err := e.Deny(q); err != nil {
				return nil, err
			}
			return newResult(nil), nil
		}
	}

	cond := NewConditionNode(LogicalOr)
	for _, f := range fields {
		cond.AddRule(NewRuleNode(f, OpContains, term))
	}
	return e.ApplyNode(q, cond, level)
}

func (e *Engine) searchableFields(meta *ObjectMetadata) []string {
	var out []string
	for name, f := range meta.Fields {
		if f.Filterable && f.Type.Family() == FieldTypeString && e.config.allows(f, OpContains) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (e *Engine) readableFields(meta *ObjectMetadata, names []string, level Level) []string {
	if level < LevelAll {
		return names
	}
	v := &validator{engine: e, level: level}
	var out []string
	for _, name := range names {
		if v.granted(meta, name, meta.Fields[name].Public, RefField) {
			out = append(out, name)
		}
	}
	return out
}

// ErrInvalidSortField is wrapped by Sort errors for fields that cannot be
// resolved or are not visible.
var ErrInvalidSortField = errors.New("filter: invalid sort field")

// SortField is one requested ordering.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSort parses a comma separated list such as "-created_at,company.name".
// A leading '-' sorts descending, '+' ascending.
func ParseSort(s string) []SortField {
	var out []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sf := SortField{Field: part}
		switch part[0] {
		case '-':
			sf.Field, sf.Descending = strings.TrimSpace(part[1:]), true
		case '+':
			sf.Field = strings.TrimSpace(part[1:])
		}
		if sf.Field != "" {
			out = append(out, sf)
		}
	}
	return out
}

// Sort records ORDER BY terms on q. Association fields are joined with
// LEFT joins so rows without the related object are kept.
func (e *Engine) Sort(q *Query, fields []SortField, level Level) error {
	if len(fields) == 0 {
		return nil
	}
	meta, err := e.oracle.Metadata(q.Entity)
	if err != nil {
		return fmt.Errorf("filter: metadata for %q: %w", q.Entity, err)
	}

	v := &validator{
		engine:  e,
		level:   level,
		options: e.options,
		result:  newResult(nil),
		planner: newJoinPlanner(q.Alias, q.knownJoins()),
	}
	scratch := q.Scratch()
	for _, sf := range fields {
		res, nodeErr, err := v.resolve(sf.Field, meta, sf.Field)
		if err != nil {
			return err
		}
		if nodeErr != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSortField, nodeErr.Message)
		}
		if res.elided {
			return fmt.Errorf("%w: %s is not readable", ErrInvalidSortField, sf.Field)
		}
		alias := v.planner.commit(q.Alias, res.hops, JoinLeft)
		scratch.OrderBy = append(scratch.OrderBy, OrderBy{
			Column:     Column{Alias: alias, Name: res.field.column},
			Descending: sf.Descending,
		})
	}

	args := &CompileArgs{Binder: scratch, Metadata: meta, Alias: q.Alias, Joins: v.planner.planned, Options: e.options}
	bindJoinLocales(args)
	scratch.Joins = args.Joins
	q.AddMerge(scratch)
	return nil
}

// ErrInvalidPagination is returned for non-positive page sizes.
var ErrInvalidPagination = errors.New("filter: invalid pagination")

// Paginate sets LIMIT/OFFSET for a 1-based page. Pages below 1 are treated as 1.
func Paginate(q *Query, page, perPage int) error {
	if perPage <= 0 {
		return fmt.Errorf("%w: page size %d", ErrInvalidPagination, perPage)
	}
	if page < 1 {
		page = 1
	}
	q.Limit = perPage
	q.Offset = (page - 1) * perPage
	return nil
}
