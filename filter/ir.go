package filter

// Predicate is a boolean expression produced by the compiler. Leaves only
// reference bound parameters by name; identifiers come from metadata.
type Predicate interface {
	isPredicate()
}

// Operand is one side of a comparison.
type Operand interface {
	isOperand()
}

// Column references alias.name.
type Column struct {
	Alias string
	Name  string
}

func (Column) isOperand() {}

func (c Column) String() string {
	if c.Alias == "" {
		return c.Name
	}
	return c.Alias + "." + c.Name
}

// Param references a bound parameter by name.
type Param struct {
	Name string
}

func (Param) isOperand() {}

// Literal is a constant taken from the operator table (an empty string or a boolean),
// never from user input.
type Literal struct {
	Value any
}

func (Literal) isOperand() {}

// And is the conjunction of its terms.
type And struct {
	Terms []Predicate
}

func (*And) isPredicate() {}

// Or is the disjunction of its terms.
type Or struct {
	Terms []Predicate
}

func (*Or) isPredicate() {}

// Not negates a term.
type Not struct {
	Term Predicate
}

func (*Not) isPredicate() {}

// Paren renders its term in parentheses.
type Paren struct {
	Term Predicate
}

func (*Paren) isPredicate() {}

// CompareOp lists supported comparison operators.
type CompareOp string

const (
	CompareEq  CompareOp = "="
	CompareNeq CompareOp = "!="
	CompareLt  CompareOp = "<"
	CompareLte CompareOp = "<="
	CompareGt  CompareOp = ">"
	CompareGte CompareOp = ">="
)

// Compare is a binary comparison.
type Compare struct {
	Left  Operand
	Op    CompareOp
	Right Operand
}

func (*Compare) isPredicate() {}

// Like is a case- and accent-insensitive pattern match.
type Like struct {
	Left    Column
	Pattern Param
	Negate  bool
}

func (*Like) isPredicate() {}

// InList is an IN predicate with one parameter per element.
type InList struct {
	Left   Column
	Params []Param
	Negate bool
}

func (*InList) isPredicate() {}

// Null is an IS [NOT] NULL test.
type Null struct {
	Left   Column
	Negate bool
}

func (*Null) isPredicate() {}

// Raw is a hand-written fragment. Each `?` is replaced by the next entry of
// Params.
type Raw struct {
	SQL DialectSQL
	// Column is the column the fragment tests, used by Evaluate.
	Column Column
	Params []Param
	Eval   RawEval
}

func (*Raw) isPredicate() {}

// Constant captures a literal boolean outcome.
type Constant struct {
	Value bool
}

func (*Constant) isPredicate() {}

// walkParams calls fn for every parameter reference in p.
func walkParams(p Predicate, fn func(*Param)) {
	switch v := p.(type) {
	case *And:
		for _, t := range v.Terms {
			walkParams(t, fn)
		}
	case *Or:
		for _, t := range v.Terms {
			walkParams(t, fn)
		}
	case *Not:
		walkParams(v.Term, fn)
	case *Paren:
		walkParams(v.Term, fn)
	case *Compare:
		if prm, ok := v.Left.(Param); ok {
			fn(&prm)
			v.Left = prm
		}
		if prm, ok := v.Right.(Param); ok {
			fn(&prm)
			v.Right = prm
		}
	case *Like:
		fn(&v.Pattern)
	case *InList:
		for i := range v.Params {
			fn(&v.Params[i])
		}
	case *Raw:
		for i := range v.Params {
			fn(&v.Params[i])
		}
	}
}

// clonePredicate returns a deep copy so renaming never touches shared trees.
func clonePredicate(p Predicate) Predicate {
	switch v := p.(type) {
	case nil:
		return nil
	case *And:
		return &And{Terms: clonePredicates(v.Terms)}
	case *Or:
		return &Or{Terms: clonePredicates(v.Terms)}
	case *Not:
		return &Not{Term: clonePredicate(v.Term)}
	case *Paren:
		return &Paren{Term: clonePredicate(v.Term)}
	case *Compare:
		c := *v
		return &c
	case *Like:
		c := *v
		return &c
	case *InList:
		c := *v
		c.Params = append([]Param(nil), v.Params...)
		return &c
	case *Null:
		c := *v
		return &c
	case *Raw:
		c := *v
		c.Params = append([]Param(nil), v.Params...)
		return &c
	case *Constant:
		c := *v
		return &c
	default:
		return p
	}
}

func clonePredicates(in []Predicate) []Predicate {
	out := make([]Predicate, len(in))
	for i, p := range in {
		out[i] = clonePredicate(p)
	}
	return out
}
