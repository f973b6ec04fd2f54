package filter

import (
	"fmt"
	"strings"
)

// RenderOptions controls how predicates are rendered.
type RenderOptions struct {
	Dialect DialectName
	// PlaceholderOffset shifts `$n` numbering for DialectPostgres.
	PlaceholderOffset int
	// QuestionMarks forces `?` placeholders regardless of dialect, for query
	// builders that renumber placeholders themselves.
	QuestionMarks bool
	// ConvertParam maps bound values to driver values. Nil keeps values as is.
	ConvertParam func(Parameter) any
}

// Statement is a rendered SQL fragment plus its arguments.
type Statement struct {
	SQL  string
	Args []any
	// NamedArgs is populated instead of Args for DialectDQL and DialectPostgresNamedArgs.
	NamedArgs map[string]any
}

type renderer struct {
	opts               RenderOptions
	params             map[string]Parameter
	placeholderCounter int
	args               []any
	named              map[string]any
}

func newRenderer(params []Parameter, opts RenderOptions) *renderer {
	lookup := make(map[string]Parameter, len(params))
	for _, p := range params {
		lookup[p.Name] = p
	}
	if opts.Dialect == "" {
		opts.Dialect = DialectDQL
	}
	return &renderer{opts: opts, params: lookup}
}

// Render renders a predicate against the parameters it references.
// A nil predicate renders as an empty statement.
func Render(p Predicate, params []Parameter, opts RenderOptions) (Statement, error) {
	r := newRenderer(params, opts)
	if p == nil {
		return r.statement(""), nil
	}
	sql, err := r.render(p)
	if err != nil {
		return Statement{}, err
	}
	return r.statement(sql), nil
}

func (r *renderer) statement(sql string) Statement {
	if r.named != nil {
		return Statement{SQL: sql, NamedArgs: r.named}
	}
	args := r.args
	if args == nil {
		args = []any{}
	}
	return Statement{SQL: sql, Args: args}
}

func (r *renderer) namedPlaceholders() bool {
	if r.opts.QuestionMarks {
		return false
	}
	return r.opts.Dialect == DialectDQL || r.opts.Dialect == DialectPostgresNamedArgs
}

func (r *renderer) render(p Predicate) (string, error) {
	switch v := p.(type) {
	case *And:
		return r.renderJunction(v.Terms, " AND ")
	case *Or:
		return r.renderJunction(v.Terms, " OR ")
	case *Not:
		inner, err := r.render(v.Term)
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil
	case *Paren:
		inner, err := r.render(v.Term)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *Compare:
		return r.renderCompare(v)
	case *Like:
		return r.renderLike(v)
	case *InList:
		return r.renderIn(v)
	case *Null:
		if v.Negate {
			return v.Left.String() + " IS NOT NULL", nil
		}
		return v.Left.String() + " IS NULL", nil
	case *Raw:
		return r.renderRaw(v)
	case *Constant:
		if v.Value {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	default:
		return "", fmt.Errorf("filter: unsupported predicate type %T", p)
	}
}

func (r *renderer) renderJunction(terms []Predicate, sep string) (string, error) {
	if len(terms) == 0 {
		return "", fmt.Errorf("filter: empty junction")
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		s, err := r.render(t)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

func (r *renderer) renderCompare(c *Compare) (string, error) {
	left, err := r.operand(c.Left)
	if err != nil {
		return "", err
	}
	right, err := r.operand(c.Right)
	if err != nil {
		return "", err
	}
	return left + " " + string(c.Op) + " " + right, nil
}

func (r *renderer) renderLike(l *Like) (string, error) {
	ph, err := r.placeholder(l.Pattern)
	if err != nil {
		return "", err
	}
	col, pattern := "LOWER("+l.Left.String()+")", "LOWER("+ph+")"
	// MySQL collations already ignore accents.
	if r.opts.Dialect != DialectMySQL {
		col, pattern = "UNACCENT("+col+")", "UNACCENT("+pattern+")"
	}
	if l.Negate {
		return col + " NOT LIKE " + pattern, nil
	}
	return col + " LIKE " + pattern, nil
}

func (r *renderer) renderIn(in *InList) (string, error) {
	if len(in.Params) == 0 {
		return "", fmt.Errorf("filter: empty IN list on %s", in.Left)
	}
	phs := make([]string, 0, len(in.Params))
	for _, p := range in.Params {
		ph, err := r.placeholder(p)
		if err != nil {
			return "", err
		}
		phs = append(phs, ph)
	}
	kw := " IN ("
	if in.Negate {
		kw = " NOT IN ("
	}
	return in.Left.String() + kw + strings.Join(phs, ", ") + ")", nil
}

func (r *renderer) renderRaw(raw *Raw) (string, error) {
	sql := raw.SQL.template(r.opts.Dialect)
	if sql == "" {
		return "", fmt.Errorf("filter: raw fragment has no SQL for dialect %s", r.opts.Dialect)
	}
	var out strings.Builder
	idx := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			out.WriteByte(sql[i])
			continue
		}
		if idx >= len(raw.Params) {
			return "", fmt.Errorf("filter: raw fragment has more '?' than params (%d)", len(raw.Params))
		}
		ph, err := r.placeholder(raw.Params[idx])
		if err != nil {
			return "", err
		}
		out.WriteString(ph)
		idx++
	}
	if idx != len(raw.Params) {
		return "", fmt.Errorf("filter: raw fragment has fewer '?' than params (%d)", len(raw.Params))
	}
	return out.String(), nil
}

func (r *renderer) operand(o Operand) (string, error) {
	switch v := o.(type) {
	case Column:
		return v.String(), nil
	case Param:
		return r.placeholder(v)
	case Literal:
		return r.literal(v.Value)
	default:
		return "", fmt.Errorf("filter: unsupported operand type %T", o)
	}
}

func (r *renderer) literal(v any) (string, error) {
	switch lit := v.(type) {
	case bool:
		if r.opts.Dialect == DialectSQLite {
			if lit {
				return "1", nil
			}
			return "0", nil
		}
		if lit {
			return "true", nil
		}
		return "false", nil
	case string:
		return "'" + strings.ReplaceAll(lit, "'", "''") + "'", nil
	default:
		return "", fmt.Errorf("filter: unsupported literal %T", v)
	}
}

func (r *renderer) placeholder(p Param) (string, error) {
	param, ok := r.params[p.Name]
	if !ok {
		return "", fmt.Errorf("filter: unbound parameter %q", p.Name)
	}
	value := param.Value
	if r.opts.ConvertParam != nil {
		value = r.opts.ConvertParam(param)
	}

	if r.namedPlaceholders() {
		if r.named == nil {
			r.named = map[string]any{}
		}
		r.named[p.Name] = value
		if r.opts.Dialect == DialectPostgresNamedArgs {
			return "@" + p.Name, nil
		}
		return ":" + p.Name, nil
	}

	r.placeholderCounter++
	r.args = append(r.args, value)
	if r.opts.Dialect == DialectPostgres && !r.opts.QuestionMarks {
		return fmt.Sprintf("$%d", r.opts.PlaceholderOffset+r.placeholderCounter), nil
	}
	return "?", nil
}
