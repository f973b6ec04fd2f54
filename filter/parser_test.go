package filter_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fy0/filterable/filter"
)

func TestParseRuleRoundTrip(t *testing.T) {
	tests := []struct {
		input    string
		field    string
		operator filter.Operator
		value    any
	}{
		{`{"field":"name","operator":"not_equal","value":"Bob"}`, "name", filter.OpNotEqual, "Bob"},
		{`{"field":"name","value":"Bob"}`, "name", filter.OpEqual, "Bob"},
		{`{"field":"age","operator":"greater","value":18}`, "age", filter.OpGreater, json.Number("18")},
		{`{"field":"active","operator":"equal","value":true}`, "active", filter.OpEqual, true},
		{`{"field":"name","operator":"is_null"}`, "name", filter.OpIsNull, nil},
		{`{"field":"company.name","operator":"contains","value":"ac"}`, "company.name", filter.OpContains, "ac"},
	}
	for _, tt := range tests {
		node := mustParse(t, tt.input, false)
		rule, ok := node.(*filter.RuleNode)
		if !ok {
			t.Fatalf("%s: expected *RuleNode, got %T", tt.input, node)
		}
		if rule.Field() != tt.field || rule.Operator() != tt.operator || rule.Value() != tt.value {
			t.Fatalf("%s: unexpected rule %s (value %#v)", tt.input, rule, rule.Value())
		}
	}
}

func TestParseForceFirstCondition(t *testing.T) {
	const input = `{"field":"name","value":"Bob"}`

	root, ok := mustParse(t, input, true).(*filter.ConditionNode)
	if !ok {
		t.Fatalf("expected condition root")
	}
	if root.Condition() != filter.LogicalAnd || len(root.Rules()) != 1 {
		t.Fatalf("unexpected root: %s with %d rules", root.Name(), len(root.Rules()))
	}
	rule := root.Rules()[0].(*filter.RuleNode)
	if rule.Field() != "name" || rule.Operator() != filter.OpEqual || rule.Value() != "Bob" {
		t.Fatalf("unexpected child: %s", rule)
	}

	if _, ok := mustParse(t, input, false).(*filter.RuleNode); !ok {
		t.Fatalf("expected bare rule without forcing")
	}

	cond := `{"condition":"OR","rules":[{"field":"name","value":"a"}]}`
	if got := mustParse(t, cond, true).(*filter.ConditionNode); got.Condition() != filter.LogicalOr {
		t.Fatalf("condition root must not be wrapped, got %s", got.Name())
	}
}

func TestParseNestedConditions(t *testing.T) {
	node := mustParse(t, `{"condition":"AND","rules":[
		{"field":"age","operator":"between","value":[18,65]},
		{"condition":"OR","rules":[{"field":"name","value":"Bob"},{"field":"name","value":"Alice"}]}
	]}`, false)

	root := node.(*filter.ConditionNode)
	if len(root.Rules()) != 2 {
		t.Fatalf("unexpected rules: %d", len(root.Rules()))
	}
	between := root.Rules()[0].(*filter.RuleNode)
	if !between.IsCollectible() || between.SizeCollection() != 2 || !between.IsRequiredValue() {
		t.Fatalf("unexpected between spec: collectible=%v size=%d", between.IsCollectible(), between.SizeCollection())
	}
	or := root.Rules()[1].(*filter.ConditionNode)
	if or.Condition() != filter.LogicalOr || len(or.Rules()) != 2 {
		t.Fatalf("unexpected nested condition: %s", or.Name())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  filter.ParseErrorKind
		path  string
	}{
		{`{"field":`, filter.ErrKindInvalidJSON, ""},
		{`{"field":"a"} {}`, filter.ErrKindInvalidJSON, ""},
		{`[]`, filter.ErrKindUnexpectedType, ""},
		{`{"condition":"XOR","rules":[]}`, filter.ErrKindInvalidConditionType, "condition"},
		{`{"condition":1,"rules":[]}`, filter.ErrKindUnexpectedType, "condition"},
		{`{"condition":"AND"}`, filter.ErrKindRequireParameter, "condition[AND].rules"},
		{`{"condition":"AND","rules":{}}`, filter.ErrKindUnexpectedType, "condition[AND].rules"},
		{`{"operator":"equal","value":1}`, filter.ErrKindRequireParameter, "field"},
		{`{"field":3}`, filter.ErrKindUnexpectedType, "field"},
		{`{"field":"a","operator":"like"}`, filter.ErrKindInvalidRuleType, "operator"},
		{`{"field":"a","value":{"x":1}}`, filter.ErrKindUnexpectedType, "value"},
		{`{"field":"a","value":[1,{"x":1}]}`, filter.ErrKindUnexpectedType, "value[1]"},
		{`{"condition":"AND","rules":[{"field":"a"},{"condition":"OR","rules":[{"value":1}]}]}`,
			filter.ErrKindRequireParameter, "condition[AND].rules[1].condition[OR].rules[0].field"},
	}
	for _, tt := range tests {
		_, err := filter.ParseJSON([]byte(tt.input), false)
		var pe *filter.ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: expected *ParseError, got %v", tt.input, err)
		}
		if pe.Kind != tt.kind || pe.Path != tt.path {
			t.Fatalf("%s: unexpected error kind=%s path=%q (%v)", tt.input, pe.Kind, pe.Path, err)
		}
	}
}

func TestParseInvalidOperatorListsAllowed(t *testing.T) {
	_, err := filter.ParseJSON([]byte(`{"field":"a","operator":"like"}`), false)
	var pe *filter.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if len(pe.Allowed) != len(filter.Operators()) || pe.Got != "like" {
		t.Fatalf("unexpected allowed set: %v", pe.Allowed)
	}
}

func TestParseExpression(t *testing.T) {
	expr := filter.AnyOf(
		filter.NewFilterRule("name", "", "Bob"),
		filter.AllOf(
			filter.NewFilterRule("age", filter.OpIn, []int{1, 2}),
			filter.NewFilterRule("active", filter.OpIsTrue, nil),
		),
	)
	node, err := filter.Parse(expr, true)
	if err != nil {
		t.Fatal(err)
	}
	root := node.(*filter.ConditionNode)
	if root.Condition() != filter.LogicalOr {
		t.Fatalf("unexpected root %s", root.Name())
	}
	in := root.Rules()[1].(*filter.ConditionNode).Rules()[0].(*filter.RuleNode)
	items, ok := in.Value().([]any)
	if !ok || len(items) != 2 || items[0] != 1 {
		t.Fatalf("typed slices must be normalised, got %#v", in.Value())
	}

	data, err := json.Marshal(expr)
	if err != nil {
		t.Fatal(err)
	}
	reparsed := mustParse(t, string(data), false).(*filter.ConditionNode)
	if len(reparsed.Rules()) != 2 {
		t.Fatalf("unexpected reparsed tree: %s", data)
	}
}
