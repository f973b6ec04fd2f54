package filter

import "encoding/json"

// Expression is a caller-built filter tree: a FilterRule or a FilterCondition.
type Expression interface {
	// Raw returns the decoded-JSON shape accepted by Parse.
	Raw() map[string]any
	isExpression()
}

// FilterRule is a single "field operator value" comparison.
type FilterRule struct {
	field    string
	operator Operator
	value    any
}

// NewFilterRule builds a rule. An empty operator means OpEqual.
func NewFilterRule(field string, operator Operator, value any) FilterRule {
	if operator == "" {
		operator = OpEqual
	}
	return FilterRule{field: field, operator: operator, value: value}
}

func (FilterRule) isExpression() {}

func (r FilterRule) Field() string      { return r.field }
func (r FilterRule) Operator() Operator { return r.operator }
func (r FilterRule) Value() any         { return r.value }

// Raw implements Expression.
func (r FilterRule) Raw() map[string]any {
	return map[string]any{
		"field":    r.field,
		"operator": string(r.operator),
		"value":    r.value,
	}
}

func (r FilterRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Raw())
}

// FilterCondition is a boolean AND/OR group of expressions.
type FilterCondition struct {
	condition LogicalOperator
	rules     []Expression
}

// NewFilterCondition builds a condition group.
func NewFilterCondition(condition LogicalOperator, rules ...Expression) FilterCondition {
	return FilterCondition{condition: condition, rules: append([]Expression(nil), rules...)}
}

// AllOf groups expressions with AND.
func AllOf(rules ...Expression) FilterCondition { return NewFilterCondition(LogicalAnd, rules...) }

// AnyOf groups expressions with OR.
func AnyOf(rules ...Expression) FilterCondition { return NewFilterCondition(LogicalOr, rules...) }

func (FilterCondition) isExpression() {}

func (c FilterCondition) Condition() LogicalOperator { return c.condition }

// Rules returns a copy of the child expressions.
func (c FilterCondition) Rules() []Expression {
	return append([]Expression(nil), c.rules...)
}

// Raw implements Expression.
func (c FilterCondition) Raw() map[string]any {
	rules := make([]any, 0, len(c.rules))
	for _, r := range c.rules {
		rules = append(rules, r.Raw())
	}
	return map[string]any{
		"condition": string(c.condition),
		"rules":     rules,
	}
}

func (c FilterCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Raw())
}
