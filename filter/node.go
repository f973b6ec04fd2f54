package filter

import (
	"fmt"
	"strings"
)

// Node is an element of a parsed filter tree: *RuleNode or *ConditionNode.
type Node interface {
	Name() string
	isNode()
}

// RuleNode is a leaf comparing one field with one operator.
type RuleNode struct {
	field    string
	operator Operator
	value    any
}

// NewRuleNode builds a rule node. An empty operator means OpEqual.
func NewRuleNode(field string, operator Operator, value any) *RuleNode {
	if operator == "" {
		operator = OpEqual
	}
	return &RuleNode{field: field, operator: operator, value: value}
}

func (*RuleNode) isNode() {}

// Name returns the operator name.
func (n *RuleNode) Name() string { return string(n.operator) }

// Field returns the dotted field path, e.g. "company.name".
func (n *RuleNode) Field() string { return n.field }

func (n *RuleNode) Operator() Operator { return n.operator }

// Value returns the value as parsed, before any coercion.
func (n *RuleNode) Value() any { return n.value }

// IsCollectible reports whether the operator takes an array value.
func (n *RuleNode) IsCollectible() bool { return operatorSpecs[n.operator].collectible }

// SizeCollection returns the exact element count for collectible operators,
// 0 when the array is unbounded.
func (n *RuleNode) SizeCollection() int { return operatorSpecs[n.operator].size }

// IsRequiredValue reports whether the operator needs a non-null value.
func (n *RuleNode) IsRequiredValue() bool { return operatorSpecs[n.operator].requiresValue }

func (n *RuleNode) String() string {
	return fmt.Sprintf("%s %s %v", n.field, n.operator, n.value)
}

// ConditionNode groups child nodes with AND or OR.
type ConditionNode struct {
	condition LogicalOperator
	rules     []Node
}

// NewConditionNode builds a condition node with the given children.
func NewConditionNode(condition LogicalOperator, rules ...Node) *ConditionNode {
	c := &ConditionNode{condition: condition}
	for _, r := range rules {
		c.AddRule(r)
	}
	return c
}

func (*ConditionNode) isNode() {}

func (n *ConditionNode) Name() string { return string(n.condition) }

func (n *ConditionNode) Condition() LogicalOperator { return n.condition }

// Rules returns the children in insertion order.
func (n *ConditionNode) Rules() []Node {
	return append([]Node(nil), n.rules...)
}

// AddRule appends a child. Nil children are ignored.
func (n *ConditionNode) AddRule(rule Node) {
	if rule == nil {
		return
	}
	n.rules = append(n.rules, rule)
}

// NodeError is a semantic validation failure attached to one node.
//
// MessageTemplate and MessageParameters are kept for client-side
// translation; Message is the template rendered in English.
type NodeError struct {
	Message           string
	MessageTemplate   string
	MessageParameters map[string]any
	// Pluralization selects between "singular|plural" template variants.
	Pluralization *int
	Cause         error
	// Path locates the offending node, e.g. "condition[AND].rules[2].value".
	Path string
}

func (e *NodeError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

func (e *NodeError) Unwrap() error { return e.Cause }

func newNodeError(path, template string, params map[string]any) *NodeError {
	return &NodeError{
		Message:           renderMessage(template, params, nil),
		MessageTemplate:   template,
		MessageParameters: params,
		Path:              path,
	}
}

func newPluralNodeError(path, template string, params map[string]any, plural int) *NodeError {
	return &NodeError{
		Message:           renderMessage(template, params, &plural),
		MessageTemplate:   template,
		MessageParameters: params,
		Pluralization:     &plural,
		Path:              path,
	}
}

func renderMessage(template string, params map[string]any, plural *int) string {
	msg := template
	if plural != nil {
		if singular, many, ok := strings.Cut(template, "|"); ok {
			msg = many
			if *plural == 1 {
				msg = singular
			}
		}
	}
	for k, v := range params {
		msg = strings.ReplaceAll(msg, "{{ "+k+" }}", fmt.Sprint(v))
	}
	return msg
}

func joinPath(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return parent + "." + segment
}

func conditionPath(parent string, condition LogicalOperator) string {
	return joinPath(parent, "condition["+string(condition)+"]")
}

func childPath(condPath string, index int) string {
	return fmt.Sprintf("%s.rules[%d]", condPath, index)
}
