package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParseErrorKind classifies structural filter errors.
type ParseErrorKind string

const (
	ErrKindInvalidJSON          ParseErrorKind = "invalid_json"
	ErrKindRequireParameter     ParseErrorKind = "require_parameter"
	ErrKindUnexpectedType       ParseErrorKind = "unexpected_type"
	ErrKindInvalidConditionType ParseErrorKind = "invalid_condition_type"
	ErrKindInvalidRuleType      ParseErrorKind = "invalid_rule_type"
)

// ParseError is a structural error in a filter tree. Parsing stops at the
// first one; callers report it as a client error.
type ParseError struct {
	Kind ParseErrorKind
	// Path of the offending key, e.g. "condition[AND].rules[2].field".
	Path string
	// Allowed lists accepted values for invalid_condition_type / invalid_rule_type.
	Allowed  []string
	Expected string
	Got      string
	Err      error
}

func (e *ParseError) Error() string {
	var msg string
	switch e.Kind {
	case ErrKindInvalidJSON:
		msg = "invalid JSON"
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
	case ErrKindRequireParameter:
		msg = "parameter is required"
	case ErrKindUnexpectedType:
		msg = fmt.Sprintf("expected %s, got %s", e.Expected, e.Got)
	case ErrKindInvalidConditionType:
		msg = fmt.Sprintf("invalid condition %q, allowed: %s", e.Got, strings.Join(e.Allowed, ", "))
	case ErrKindInvalidRuleType:
		msg = fmt.Sprintf("invalid operator %q, allowed: %s", e.Got, strings.Join(e.Allowed, ", "))
	default:
		msg = string(e.Kind)
	}
	if e.Path == "" {
		return "filter: " + msg
	}
	return "filter: " + e.Path + ": " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseJSON decodes filter JSON text and parses it. Numbers are kept as
// json.Number so integer values survive unchanged.
func ParseJSON(data []byte, forceFirstCondition bool) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Kind: ErrKindInvalidJSON, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Kind: ErrKindInvalidJSON, Err: fmt.Errorf("unexpected data after top-level value")}
	}
	return Parse(raw, forceFirstCondition)
}

// Parse converts a decoded filter tree into a Node.
//
// raw is a map[string]any (as produced by encoding/json) or an Expression.
// With forceFirstCondition, a bare rule root is wrapped in an implicit AND.
func Parse(raw any, forceFirstCondition bool) (Node, error) {
	node, err := parseNode(raw, "")
	if err != nil {
		return nil, err
	}
	if _, ok := node.(*ConditionNode); !ok && forceFirstCondition {
		node = NewConditionNode(LogicalAnd, node)
	}
	return node, nil
}

func parseNode(raw any, path string) (Node, error) {
	if expr, ok := raw.(Expression); ok {
		raw = expr.Raw()
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &ParseError{Kind: ErrKindUnexpectedType, Path: path, Expected: "object", Got: typeName(raw)}
	}
	if _, ok := m["condition"]; ok {
		return parseCondition(m, path)
	}
	return parseRule(m, path)
}

func parseCondition(m map[string]any, path string) (Node, error) {
	rawCond := m["condition"]
	name, ok := rawCond.(string)
	if !ok {
		return nil, &ParseError{Kind: ErrKindUnexpectedType, Path: joinPath(path, "condition"), Expected: "string", Got: typeName(rawCond)}
	}
	condition := LogicalOperator(name)
	if !condition.Known() {
		return nil, &ParseError{
			Kind:    ErrKindInvalidConditionType,
			Path:    joinPath(path, "condition"),
			Allowed: conditionNames(),
			Got:     name,
		}
	}

	condPath := conditionPath(path, condition)
	rawRules, ok := m["rules"]
	if !ok || rawRules == nil {
		return nil, &ParseError{Kind: ErrKindRequireParameter, Path: condPath + ".rules"}
	}
	rules, ok := rawRules.([]any)
	if !ok {
		return nil, &ParseError{Kind: ErrKindUnexpectedType, Path: condPath + ".rules", Expected: "array", Got: typeName(rawRules)}
	}

	node := NewConditionNode(condition)
	for i, child := range rules {
		parsed, err := parseNode(child, childPath(condPath, i))
		if err != nil {
			return nil, err
		}
		node.AddRule(parsed)
	}
	return node, nil
}

func parseRule(m map[string]any, path string) (Node, error) {
	rawField, ok := m["field"]
	if !ok || rawField == nil {
		return nil, &ParseError{Kind: ErrKindRequireParameter, Path: joinPath(path, "field")}
	}
	field, ok := rawField.(string)
	if !ok {
		return nil, &ParseError{Kind: ErrKindUnexpectedType, Path: joinPath(path, "field"), Expected: "string", Got: typeName(rawField)}
	}
	if strings.TrimSpace(field) == "" {
		return nil, &ParseError{Kind: ErrKindRequireParameter, Path: joinPath(path, "field")}
	}

	operator := OpEqual
	if rawOp, ok := m["operator"]; ok && rawOp != nil {
		name, ok := rawOp.(string)
		if !ok {
			return nil, &ParseError{Kind: ErrKindUnexpectedType, Path: joinPath(path, "operator"), Expected: "string", Got: typeName(rawOp)}
		}
		operator = Operator(name)
		if !operator.Known() {
			return nil, &ParseError{
				Kind:    ErrKindInvalidRuleType,
				Path:    joinPath(path, "operator"),
				Allowed: operatorNames(),
				Got:     name,
			}
		}
	}

	value, err := parseValue(m["value"], joinPath(path, "value"))
	if err != nil {
		return nil, err
	}
	return NewRuleNode(field, operator, value), nil
}

// parseValue accepts scalars and (nested) arrays of scalars. Typed slices
// are normalised to []any.
func parseValue(raw any, path string) (any, error) {
	switch v := raw.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case uuid.UUID:
		return v.String(), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			parsed, err := parseValue(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = parsed
		}
		return out, nil
	}
	if items, ok := toAnySlice(raw); ok {
		return parseValue(items, path)
	}
	return nil, &ParseError{Kind: ErrKindUnexpectedType, Path: path, Expected: "scalar or array", Got: typeName(raw)}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
