package filter

import (
	"fmt"
)

// CompileOptions are per-request compile capabilities.
type CompileOptions struct {
	// Translatable resolves translatable fields through the entity's
	// translation association, restricted to Locale.
	Translatable bool
	Locale       string
}

// CompileArgs is the state shared by one compilation pass.
type CompileArgs struct {
	Binder   ParameterBinder
	Metadata *ObjectMetadata
	Alias    string
	// Joins is the join plan; translation joins get their locale condition bound here.
	Joins   []Join
	Result  *Result
	Options CompileOptions
}

// Column returns the resolved column of a validated rule.
func (a *CompileArgs) Column(rule *RuleNode) (Column, bool) {
	rf, ok := a.Result.resolved[rule]
	if !ok {
		return Column{}, false
	}
	return Column{Alias: rf.alias, Name: rf.column}, true
}

// BindType returns the parameter type of a validated rule's field.
func (a *CompileArgs) BindType(rule *RuleNode) FieldType {
	rf, ok := a.Result.resolved[rule]
	if !ok {
		return ""
	}
	return rf.bindType()
}

// NodeTransformer compiles rules on fields that need custom SQL. A rule
// whose query value is a NodeTransformer is compiled by it.
type NodeTransformer interface {
	CompileNode(rule *RuleNode, args *CompileArgs) (Predicate, error)
}

// TransformerFunc adapts a function to NodeTransformer.
type TransformerFunc func(rule *RuleNode, args *CompileArgs) (Predicate, error)

// CompileNode implements NodeTransformer.
func (f TransformerFunc) CompileNode(rule *RuleNode, args *CompileArgs) (Predicate, error) {
	return f(rule, args)
}

// Compile turns a validated tree into a predicate. Rules that are invalid
// or elided contribute nothing; a nil predicate means nothing survived.
func Compile(node Node, args *CompileArgs) (Predicate, error) {
	if args == nil || args.Result == nil || args.Binder == nil {
		return nil, fmt.Errorf("filter: compile requires a binder and a validation result")
	}
	pred, err := compileNode(node, args)
	if err != nil {
		return nil, err
	}
	bindJoinLocales(args)
	return pred, nil
}

func compileNode(node Node, args *CompileArgs) (Predicate, error) {
	switch n := node.(type) {
	case *ConditionNode:
		return compileCondition(n, args)
	case *RuleNode:
		if t, ok := args.Result.QueryValue(n).(NodeTransformer); ok {
			if !args.Result.IsValid(n) || args.Result.Elided(n) {
				return nil, nil
			}
			return t.CompileNode(n, args)
		}
		return compileRule(n, args)
	default:
		return nil, fmt.Errorf("filter: unsupported node type %T", node)
	}
}

func compileCondition(n *ConditionNode, args *CompileArgs) (Predicate, error) {
	terms := make([]Predicate, 0, len(n.rules))
	for _, child := range n.rules {
		p, err := compileNode(child, args)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		terms = append(terms, &Paren{Term: p})
	}
	switch {
	case len(terms) == 0:
		return nil, nil
	case n.condition == LogicalOr:
		return &Or{Terms: terms}, nil
	default:
		return &And{Terms: terms}, nil
	}
}

func compileRule(rule *RuleNode, args *CompileArgs) (Predicate, error) {
	if !args.Result.IsValid(rule) || args.Result.Elided(rule) {
		return nil, nil
	}
	col, ok := args.Column(rule)
	if !ok {
		return nil, nil
	}
	typ := args.BindType(rule)
	value := args.Result.Value(rule)

	bind := func(v any) Param {
		return Param{Name: args.Binder.Bind(v, typ)}
	}
	compare := func(op CompareOp) Predicate {
		return &Compare{Left: col, Op: op, Right: bind(value)}
	}
	like := func(prefix, suffix string, negate bool) Predicate {
		pattern := prefix + fmt.Sprint(value) + suffix
		return &Like{Left: col, Pattern: Param{Name: args.Binder.Bind(pattern, FieldTypeString)}, Negate: negate}
	}
	between := func() (Predicate, error) {
		items, ok := value.([]any)
		if !ok || len(items) != 2 {
			return nil, fmt.Errorf("filter: %s expects two values on %s", rule.operator, rule.field)
		}
		return &And{Terms: []Predicate{
			&Compare{Left: col, Op: CompareGte, Right: bind(items[0])},
			&Compare{Left: col, Op: CompareLte, Right: bind(items[1])},
		}}, nil
	}
	in := func(negate bool) (Predicate, error) {
		items, ok := value.([]any)
		if !ok || len(items) == 0 {
			return nil, fmt.Errorf("filter: %s expects a non-empty list on %s", rule.operator, rule.field)
		}
		params := make([]Param, len(items))
		for i, item := range items {
			params[i] = bind(item)
		}
		return &InList{Left: col, Params: params, Negate: negate}, nil
	}

	switch rule.operator {
	case OpEqual:
		return compare(CompareEq), nil
	case OpNotEqual:
		return compare(CompareNeq), nil
	case OpLess:
		return compare(CompareLt), nil
	case OpLessOrEqual:
		return compare(CompareLte), nil
	case OpGreater:
		return compare(CompareGt), nil
	case OpGreaterOrEqual:
		return compare(CompareGte), nil
	case OpContains:
		return like("%", "%", false), nil
	case OpNotContains:
		return like("%", "%", true), nil
	case OpBeginsWith:
		return like("", "%", false), nil
	case OpNotBeginsWith:
		return like("", "%", true), nil
	case OpEndsWith:
		return like("%", "", false), nil
	case OpNotEndsWith:
		return like("%", "", true), nil
	case OpBetween:
		return between()
	case OpNotBetween:
		p, err := between()
		if err != nil {
			return nil, err
		}
		return &Not{Term: &Paren{Term: p}}, nil
	case OpIn:
		return in(false)
	case OpNotIn:
		return in(true)
	case OpIsEmpty:
		return &Compare{Left: col, Op: CompareEq, Right: Literal{Value: ""}}, nil
	case OpIsNotEmpty:
		return &Compare{Left: col, Op: CompareNeq, Right: Literal{Value: ""}}, nil
	case OpIsNull:
		return &Null{Left: col}, nil
	case OpIsNotNull:
		return &Null{Left: col, Negate: true}, nil
	case OpIsTrue:
		return &Compare{Left: col, Op: CompareEq, Right: Literal{Value: true}}, nil
	case OpIsFalse:
		return &Compare{Left: col, Op: CompareEq, Right: Literal{Value: false}}, nil
	default:
		return nil, fmt.Errorf("filter: unsupported operator %q", rule.operator)
	}
}

// bindJoinLocales binds the locale condition of translation joins.
func bindJoinLocales(args *CompileArgs) {
	for i := range args.Joins {
		j := &args.Joins[i]
		if j.locale == "" || j.With != nil {
			continue
		}
		j.With = &Compare{
			Left:  Column{Alias: j.Alias, Name: j.localeColumn},
			Op:    CompareEq,
			Right: Param{Name: args.Binder.Bind(j.locale, FieldTypeString)},
		}
	}
}
