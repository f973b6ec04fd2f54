package filter

import (
	"fmt"
	"strings"
)

// DialectSQL stores dialect-specific SQL templates. Empty entries fall back
// to Default.
//
// Placeholders:
//   - `{{column}}` is replaced with the rule's qualified column.
//   - `?` binds the next rule value; collection values bind one per element.
type DialectSQL struct {
	Default  string
	SQLite   string
	MySQL    string
	Postgres string
}

func (s DialectSQL) template(d DialectName) string {
	switch d {
	case DialectSQLite:
		if s.SQLite != "" {
			return s.SQLite
		}
	case DialectMySQL:
		if s.MySQL != "" {
			return s.MySQL
		}
	case DialectPostgres, DialectPostgresNamedArgs:
		if s.Postgres != "" {
			return s.Postgres
		}
	}
	return s.Default
}

func (s DialectSQL) mapTemplates(fn func(string) string) DialectSQL {
	apply := func(t string) string {
		if t == "" {
			return ""
		}
		return fn(t)
	}
	return DialectSQL{
		Default:  apply(s.Default),
		SQLite:   apply(s.SQLite),
		MySQL:    apply(s.MySQL),
		Postgres: apply(s.Postgres),
	}
}

// RawEval evaluates a Raw predicate in memory. value is the row's value for
// the predicate column and args are the bound parameter values.
type RawEval func(value any, args []any) (bool, error)

// SQLTransformer is a NodeTransformer compiling rules to hand-written SQL,
// for columns the operator table cannot express (JSON documents, arrays,
// full-text indexes).
type SQLTransformer struct {
	SQL DialectSQL
	// Eval is optional; without it Evaluate rejects the predicate.
	Eval RawEval
}

// CompileNode implements NodeTransformer.
func (t SQLTransformer) CompileNode(rule *RuleNode, args *CompileArgs) (Predicate, error) {
	col, ok := args.Column(rule)
	if !ok {
		return nil, nil
	}
	sql := t.SQL.mapTemplates(func(s string) string {
		return strings.ReplaceAll(s, "{{column}}", col.String())
	})
	if sql.Default == "" {
		return nil, fmt.Errorf("filter: transformer for %s has no default SQL", rule.field)
	}

	values := []any{args.Result.Value(rule)}
	if list, ok := values[0].([]any); ok {
		values = list
	} else if values[0] == nil {
		values = nil
	}
	want := strings.Count(sql.Default, "?")
	if want != len(values) {
		return nil, fmt.Errorf("filter: transformer for %s expects %d values, got %d", rule.field, want, len(values))
	}

	typ := args.BindType(rule)
	params := make([]Param, len(values))
	for i, v := range values {
		params[i] = Param{Name: args.Binder.Bind(v, typ)}
	}
	return &Raw{SQL: sql, Column: col, Params: params, Eval: t.Eval}, nil
}
