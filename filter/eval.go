package filter

import (
	"cmp"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Row supplies column values to Evaluate.
type Row interface {
	// Lookup returns the value of col; ok is false when the row has no such column.
	Lookup(col Column) (value any, ok bool)
}

// MapRow is a Row keyed by "alias.column", falling back to the bare column name.
type MapRow map[string]any

// Lookup implements Row.
func (m MapRow) Lookup(col Column) (any, bool) {
	if v, ok := m[col.String()]; ok {
		return v, true
	}
	v, ok := m[col.Name]
	return v, ok
}

// Evaluate decides p against a single row with SQL semantics: comparisons
// with NULL are unknown, and only a true outcome matches.
func Evaluate(p Predicate, params []Parameter, row Row) (bool, error) {
	if p == nil {
		return true, nil
	}
	if row == nil {
		row = MapRow{}
	}
	lookup := make(map[string]any, len(params))
	for _, prm := range params {
		lookup[prm.Name] = prm.Value
	}
	e := &evaluator{params: lookup, row: row}
	out, err := e.eval(p)
	if err != nil {
		return false, err
	}
	return out == truthTrue, nil
}

// Matches reports whether row satisfies the compiled tree. A denied tree
// matches nothing.
func (c *Compiled) Matches(row Row) (bool, error) {
	if c.Denied() {
		return false, nil
	}
	return Evaluate(c.Where, c.Params, row)
}

type truth int8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

type evaluator struct {
	params map[string]any
	row    Row
}

func (e *evaluator) eval(p Predicate) (truth, error) {
	switch v := p.(type) {
	case *And:
		out := truthTrue
		for _, t := range v.Terms {
			r, err := e.eval(t)
			if err != nil {
				return truthFalse, err
			}
			if r == truthFalse {
				return truthFalse, nil
			}
			if r == truthUnknown {
				out = truthUnknown
			}
		}
		return out, nil
	case *Or:
		out := truthFalse
		for _, t := range v.Terms {
			r, err := e.eval(t)
			if err != nil {
				return truthFalse, err
			}
			if r == truthTrue {
				return truthTrue, nil
			}
			if r == truthUnknown {
				out = truthUnknown
			}
		}
		return out, nil
	case *Not:
		r, err := e.eval(v.Term)
		if err != nil || r == truthUnknown {
			return r, err
		}
		return truthOf(r == truthFalse), nil
	case *Paren:
		return e.eval(v.Term)
	case *Compare:
		return e.evalCompare(v)
	case *Like:
		return e.evalLike(v)
	case *InList:
		return e.evalIn(v)
	case *Null:
		val, err := e.column(v.Left)
		if err != nil {
			return truthFalse, err
		}
		return truthOf((val == nil) != v.Negate), nil
	case *Raw:
		return e.evalRaw(v)
	case *Constant:
		return truthOf(v.Value), nil
	default:
		return truthFalse, fmt.Errorf("filter: cannot evaluate predicate type %T", p)
	}
}

func (e *evaluator) column(col Column) (any, error) {
	v, ok := e.row.Lookup(col)
	if !ok {
		return nil, fmt.Errorf("filter: missing value for column %s", col)
	}
	return v, nil
}

func (e *evaluator) param(p Param) (any, error) {
	v, ok := e.params[p.Name]
	if !ok {
		return nil, fmt.Errorf("filter: unbound parameter %q", p.Name)
	}
	return v, nil
}

func (e *evaluator) operand(o Operand) (any, error) {
	switch v := o.(type) {
	case Column:
		return e.column(v)
	case Param:
		return e.param(v)
	case Literal:
		return v.Value, nil
	default:
		return nil, fmt.Errorf("filter: unsupported operand type %T", o)
	}
}

func (e *evaluator) evalCompare(c *Compare) (truth, error) {
	left, err := e.operand(c.Left)
	if err != nil {
		return truthFalse, err
	}
	right, err := e.operand(c.Right)
	if err != nil {
		return truthFalse, err
	}
	if left == nil || right == nil {
		return truthUnknown, nil
	}
	cmp, err := compareValues(left, right)
	if err != nil {
		return truthFalse, err
	}
	switch c.Op {
	case CompareEq:
		return truthOf(cmp == 0), nil
	case CompareNeq:
		return truthOf(cmp != 0), nil
	case CompareLt:
		return truthOf(cmp < 0), nil
	case CompareLte:
		return truthOf(cmp <= 0), nil
	case CompareGt:
		return truthOf(cmp > 0), nil
	case CompareGte:
		return truthOf(cmp >= 0), nil
	default:
		return truthFalse, fmt.Errorf("filter: unsupported comparison %q", c.Op)
	}
}

func (e *evaluator) evalLike(l *Like) (truth, error) {
	val, err := e.column(l.Left)
	if err != nil {
		return truthFalse, err
	}
	pat, err := e.param(l.Pattern)
	if err != nil {
		return truthFalse, err
	}
	if val == nil || pat == nil {
		return truthUnknown, nil
	}
	s, err := likeString(val)
	if err != nil {
		return truthFalse, err
	}
	p, err := likeString(pat)
	if err != nil {
		return truthFalse, err
	}
	return truthOf(matchLike(foldLike(s), foldLike(p)) != l.Negate), nil
}

func (e *evaluator) evalIn(in *InList) (truth, error) {
	val, err := e.column(in.Left)
	if err != nil {
		return truthFalse, err
	}
	if val == nil {
		return truthUnknown, nil
	}
	for _, p := range in.Params {
		item, err := e.param(p)
		if err != nil {
			return truthFalse, err
		}
		cmp, err := compareValues(val, item)
		if err != nil {
			return truthFalse, err
		}
		if cmp == 0 {
			return truthOf(!in.Negate), nil
		}
	}
	return truthOf(in.Negate), nil
}

func (e *evaluator) evalRaw(raw *Raw) (truth, error) {
	if raw.Eval == nil {
		return truthFalse, fmt.Errorf("filter: raw fragment on %s cannot be evaluated in memory", raw.Column)
	}
	val, err := e.column(raw.Column)
	if err != nil {
		return truthFalse, err
	}
	args := make([]any, len(raw.Params))
	for i, p := range raw.Params {
		if args[i], err = e.param(p); err != nil {
			return truthFalse, err
		}
	}
	ok, err := raw.Eval(val, args)
	if err != nil {
		return truthFalse, err
	}
	return truthOf(ok), nil
}

func likeString(v any) (string, error) {
	if s, ok := normalizeOperand(v).(string); ok {
		return s, nil
	}
	return toString(v)
}

// compareValues orders two non-null values, converting between the
// representations drivers and the coercer produce.
func compareValues(left, right any) (int, error) {
	left, right = normalizeOperand(left), normalizeOperand(right)
	switch l := left.(type) {
	case time.Time:
		r, err := toTime(right, datetimeLayouts)
		if err != nil {
			return 0, err
		}
		return l.Compare(r), nil
	case bool:
		r, err := toBool(right)
		if err != nil {
			return 0, err
		}
		return cmp.Compare(boolRank(l), boolRank(r)), nil
	case string:
		if r, ok := right.(string); ok {
			return cmp.Compare(l, r), nil
		}
	}

	switch right.(type) {
	case time.Time, bool:
		c, err := compareValues(right, left)
		return -c, err
	}
	if li, err := toInt64(left); err == nil {
		if ri, err := toInt64(right); err == nil {
			return cmp.Compare(li, ri), nil
		}
	}
	lf, err := toFloat64(left)
	if err != nil {
		return 0, err
	}
	rf, err := toFloat64(right)
	if err != nil {
		return 0, err
	}
	return cmp.Compare(lf, rf), nil
}

func normalizeOperand(v any) any {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case uuid.UUID:
		return s.String()
	}
	return v
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
