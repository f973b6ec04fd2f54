package filter

// Operator names a rule comparison. The set is closed: every operator has
// exactly one entry in operatorSpecs and one case in compileRule.
type Operator string

const (
	OpEqual          Operator = "equal"
	OpNotEqual       Operator = "not_equal"
	OpLess           Operator = "less"
	OpLessOrEqual    Operator = "less_or_equal"
	OpGreater        Operator = "greater"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpBeginsWith     Operator = "begins_with"
	OpNotBeginsWith  Operator = "not_begins_with"
	OpEndsWith       Operator = "ends_with"
	OpNotEndsWith    Operator = "not_ends_with"
	OpBetween        Operator = "between"
	OpNotBetween     Operator = "not_between"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
	OpIsNull         Operator = "is_null"
	OpIsNotNull      Operator = "is_not_null"
	OpIsTrue         Operator = "is_true"
	OpIsFalse        Operator = "is_false"
)

// LogicalOperator enumerates the condition keywords.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Known reports whether the condition keyword is supported.
func (c LogicalOperator) Known() bool {
	return c == LogicalAnd || c == LogicalOr
}

type operatorSpec struct {
	// collectible operators take an array value.
	collectible bool
	// size is the exact array length for collectible operators; 0 means unbounded.
	size          int
	requiresValue bool
}

var operatorSpecs = map[Operator]operatorSpec{
	OpEqual:          {requiresValue: true},
	OpNotEqual:       {requiresValue: true},
	OpLess:           {requiresValue: true},
	OpLessOrEqual:    {requiresValue: true},
	OpGreater:        {requiresValue: true},
	OpGreaterOrEqual: {requiresValue: true},
	OpContains:       {requiresValue: true},
	OpNotContains:    {requiresValue: true},
	OpBeginsWith:     {requiresValue: true},
	OpNotBeginsWith:  {requiresValue: true},
	OpEndsWith:       {requiresValue: true},
	OpNotEndsWith:    {requiresValue: true},
	OpBetween:        {collectible: true, size: 2, requiresValue: true},
	OpNotBetween:     {collectible: true, size: 2, requiresValue: true},
	OpIn:             {collectible: true, requiresValue: true},
	OpNotIn:          {collectible: true, requiresValue: true},
	OpIsEmpty:        {},
	OpIsNotEmpty:     {},
	OpIsNull:         {},
	OpIsNotNull:      {},
	OpIsTrue:         {},
	OpIsFalse:        {},
}

// operatorOrder is the canonical listing order used in error messages and definitions.
var operatorOrder = []Operator{
	OpEqual, OpNotEqual,
	OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
	OpContains, OpNotContains,
	OpBeginsWith, OpNotBeginsWith,
	OpEndsWith, OpNotEndsWith,
	OpBetween, OpNotBetween,
	OpIn, OpNotIn,
	OpIsEmpty, OpIsNotEmpty,
	OpIsNull, OpIsNotNull,
	OpIsTrue, OpIsFalse,
}

// Operators returns every supported operator in canonical order.
func Operators() []Operator {
	out := make([]Operator, len(operatorOrder))
	copy(out, operatorOrder)
	return out
}

// Known reports whether the operator is supported.
func (o Operator) Known() bool {
	_, ok := operatorSpecs[o]
	return ok
}

func operatorNames() []string {
	names := make([]string, 0, len(operatorOrder))
	for _, op := range operatorOrder {
		names = append(names, string(op))
	}
	return names
}

func conditionNames() []string {
	return []string{string(LogicalAnd), string(LogicalOr)}
}
