package filter

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is the depth of validation.
type Level int

const (
	// LevelNode checks structure, field existence and operator compatibility.
	LevelNode Level = iota + 1
	// LevelValue also coerces values and runs field constraints.
	LevelValue
	// LevelAll also enforces public flags and the authorization checker.
	// Use it for request-sourced filters.
	LevelAll
)

func (l Level) String() string {
	switch l {
	case LevelNode:
		return "node"
	case LevelValue:
		return "value"
	case LevelAll:
		return "all"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel parses "node", "value" or "all".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "node":
		return LevelNode, nil
	case "value":
		return LevelValue, nil
	case "all", "":
		return LevelAll, nil
	default:
		return 0, fmt.Errorf("filter: unknown validation level %q", s)
	}
}

// Result is the side output of validation: node errors keyed by node,
// elided rules, coerced query values and the join plan.
type Result struct {
	root         Node
	errors       map[Node][]*NodeError
	all          []*NodeError
	elided       map[*RuleNode]bool
	values       map[*RuleNode]any
	transformers map[*RuleNode]NodeTransformer
	resolved     map[*RuleNode]resolvedField
	joins        []Join
}

func newResult(root Node) *Result {
	return &Result{
		root:         root,
		errors:       map[Node][]*NodeError{},
		elided:       map[*RuleNode]bool{},
		values:       map[*RuleNode]any{},
		transformers: map[*RuleNode]NodeTransformer{},
		resolved:     map[*RuleNode]resolvedField{},
	}
}

// Root returns the validated tree.
func (r *Result) Root() Node { return r.root }

func (r *Result) addError(n Node, err *NodeError) {
	r.errors[n] = append(r.errors[n], err)
	r.all = append(r.all, err)
}

// Errors returns every node error in traversal order.
func (r *Result) Errors() []*NodeError {
	return append([]*NodeError(nil), r.all...)
}

// NodeErrors returns the errors attached to n itself.
func (r *Result) NodeErrors(n Node) []*NodeError {
	return append([]*NodeError(nil), r.errors[n]...)
}

// IsValid reports whether n and, for condition nodes, every descendant
// carry no errors.
func (r *Result) IsValid(n Node) bool {
	if len(r.errors[n]) != 0 {
		return false
	}
	if c, ok := n.(*ConditionNode); ok {
		for _, child := range c.rules {
			if !r.IsValid(child) {
				return false
			}
		}
	}
	return true
}

// Valid reports whether the whole tree is free of errors.
func (r *Result) Valid() bool { return len(r.all) == 0 }

// Elided reports whether a rule was dropped because a field or association
// on its path is not visible.
func (r *Result) Elided(n *RuleNode) bool { return r.elided[n] }

// Value returns the coerced value of a rule, or its parsed value when
// validation did not touch it.
func (r *Result) Value(n *RuleNode) any {
	if v, ok := r.values[n]; ok {
		return v
	}
	return n.Value()
}

// QueryValue returns what compilation reads for a rule: the field's
// NodeTransformer when one is configured, otherwise Value.
func (r *Result) QueryValue(n *RuleNode) any {
	if t, ok := r.transformers[n]; ok {
		return t
	}
	return r.Value(n)
}

// Joins returns the planned joins.
func (r *Result) Joins() []Join {
	return append([]Join(nil), r.joins...)
}

type resolvedField struct {
	alias    string
	field    *Field
	column   string
	storedAs FieldType
}

func (f resolvedField) bindType() FieldType {
	if f.storedAs != "" {
		return f.storedAs
	}
	return f.field.Type
}

type hop struct {
	parentMeta *ObjectMetadata
	assoc      *Association
	target     *ObjectMetadata
	level      int
	locale     string
}

type resolution struct {
	field  resolvedField
	hops   []hop
	elided bool
	reason string
}

type validator struct {
	engine  *Engine
	level   Level
	options CompileOptions
	result  *Result
	planner *joinPlanner
}

func (v *validator) logger() *slog.Logger {
	return v.engine.logger
}

func (v *validator) metadata(name string) (*ObjectMetadata, error) {
	meta, err := v.engine.oracle.Metadata(name)
	if err != nil {
		return nil, fmt.Errorf("filter: metadata for %q: %w", name, err)
	}
	return meta, nil
}

func (v *validator) walk(n Node, meta *ObjectMetadata, alias, path string, allAnd bool) error {
	switch node := n.(type) {
	case *ConditionNode:
		condPath := conditionPath(path, node.condition)
		and := allAnd && node.condition == LogicalAnd
		for i, child := range node.rules {
			if err := v.walk(child, meta, alias, childPath(condPath, i), and); err != nil {
				return err
			}
		}
		return nil
	case *RuleNode:
		return v.validateRule(node, meta, alias, path, allAnd)
	default:
		return fmt.Errorf("filter: unsupported node type %T", n)
	}
}

func (v *validator) validateRule(rule *RuleNode, meta *ObjectMetadata, alias, path string, allAnd bool) error {
	res, nodeErr, err := v.resolve(rule.field, meta, joinPath(path, "field"))
	if err != nil {
		return err
	}
	if nodeErr != nil {
		v.result.addError(rule, nodeErr)
		return nil
	}
	if res.elided {
		v.result.elided[rule] = true
		v.logger().Debug("filter rule elided", "field", rule.field, "operator", rule.operator, "reason", res.reason)
		return nil
	}

	f := res.field.field
	if !v.engine.config.allows(f, rule.operator) {
		v.result.addError(rule, newNodeError(joinPath(path, "operator"),
			`The operator "{{ operator }}" is not allowed for the field "{{ field }}" of type "{{ type }}".`,
			map[string]any{"operator": rule.operator, "field": rule.field, "type": f.Type}))
		return nil
	}

	value, nodeErr := shapeValue(rule, joinPath(path, "value"))
	if nodeErr != nil {
		v.result.addError(rule, nodeErr)
		return nil
	}

	if v.level >= LevelValue && rule.IsRequiredValue() {
		coerced, errs := coerceValue(rule, res.field, value, joinPath(path, "value"))
		if len(errs) != 0 {
			for _, e := range errs {
				v.result.addError(rule, e)
			}
			return nil
		}
		value = coerced

		errs, err = v.checkConstraints(rule, f, value, joinPath(path, "value"))
		if err != nil {
			return err
		}
		if len(errs) != 0 {
			for _, e := range errs {
				v.result.addError(rule, e)
			}
			return nil
		}
	}

	if f.Transformer != "" {
		t, ok := v.engine.transformers[f.Transformer]
		if !ok {
			return fmt.Errorf("filter: field %s.%s uses unknown transformer %q", meta.Name, f.Name, f.Transformer)
		}
		v.result.transformers[rule] = t
	}

	kind := JoinLeft
	if allAnd && rule.operator != OpIsNull {
		kind = JoinInner
	}
	res.field.alias = v.planner.commit(alias, res.hops, kind)
	v.result.resolved[rule] = res.field
	v.result.values[rule] = value
	return nil
}

// resolve walks a dotted field path through to-one associations.
func (v *validator) resolve(fieldPath string, root *ObjectMetadata, errPath string) (resolution, *NodeError, error) {
	unknown := func(entity string) *NodeError {
		return newNodeError(errPath, `The field "{{ field }}" does not exist on "{{ entity }}".`,
			map[string]any{"field": fieldPath, "entity": entity})
	}
	notFilterable := func(name string) *NodeError {
		return newNodeError(errPath, `The field "{{ field }}" is not filterable.`,
			map[string]any{"field": name})
	}

	segments := strings.Split(fieldPath, ".")
	cur := root
	var hops []hop
	for i, seg := range segments {
		if seg == "" {
			return resolution{}, unknown(cur.Name), nil
		}
		last := i == len(segments)-1

		if !last {
			assoc, ok := cur.Association(seg)
			if !ok {
				return resolution{}, unknown(cur.Name), nil
			}
			if !assoc.Kind.IsToOne() {
				return resolution{}, newNodeError(errPath,
					`The association "{{ association }}" of "{{ entity }}" is not single valued and cannot be traversed.`,
					map[string]any{"association": seg, "entity": cur.Name}), nil
			}
			if v.level >= LevelAll && !v.granted(cur, seg, assoc.Public, RefAssociation) {
				return resolution{elided: true, reason: "association " + cur.Name + "." + seg + " is not readable"}, nil, nil
			}
			target, err := v.metadata(assoc.Target)
			if err != nil {
				return resolution{}, nil, err
			}
			if !target.Filterable {
				return resolution{}, notFilterable(strings.Join(segments[:i+1], ".")), nil
			}
			hops = append(hops, hop{parentMeta: cur, assoc: assoc, target: target, level: len(hops) + 1})
			cur = target
			continue
		}

		if f, ok := cur.Field(seg); ok {
			if !f.Filterable {
				return resolution{}, notFilterable(fieldPath), nil
			}
			if v.level >= LevelAll && !v.granted(cur, seg, f.Public, RefField) {
				return resolution{elided: true, reason: "field " + cur.Name + "." + seg + " is not readable"}, nil, nil
			}
			rf := resolvedField{field: f, column: f.ColumnName(), storedAs: f.StoredAs}
			if f.Translatable && v.options.Translatable && cur.Translation != "" {
				h, column, err := v.translationHop(cur, f, len(hops)+1)
				if err != nil {
					return resolution{}, nil, err
				}
				hops = append(hops, h)
				rf.column = column
			}
			return resolution{field: rf, hops: hops}, nil, nil
		}

		if assoc, ok := cur.Association(seg); ok && assoc.Kind.IsToOne() {
			if v.level >= LevelAll && !v.granted(cur, seg, assoc.Public, RefAssociation) {
				return resolution{elided: true, reason: "association " + cur.Name + "." + seg + " is not readable"}, nil, nil
			}
			target, err := v.metadata(assoc.Target)
			if err != nil {
				return resolution{}, nil, err
			}
			id := &Field{Name: seg, Type: target.identifierType(), Filterable: true, Public: assoc.Public}
			if tf, ok := target.identifierField(); ok {
				id.StoredAs = tf.StoredAs
			}
			if assoc.MappedBy == "" {
				return resolution{
					field: resolvedField{field: id, column: assoc.joinColumn(), storedAs: id.StoredAs},
					hops:  hops,
				}, nil, nil
			}
			hops = append(hops, hop{parentMeta: cur, assoc: assoc, target: target, level: len(hops) + 1})
			return resolution{
				field: resolvedField{field: id, column: target.IdentifierColumn(), storedAs: id.StoredAs},
				hops:  hops,
			}, nil, nil
		}

		return resolution{}, unknown(cur.Name), nil
	}
	return resolution{}, unknown(root.Name), nil
}

func (v *validator) translationHop(meta *ObjectMetadata, f *Field, level int) (hop, string, error) {
	assoc, ok := meta.Association(meta.Translation)
	if !ok {
		return hop{}, "", fmt.Errorf("filter: %s declares missing translation association %q", meta.Name, meta.Translation)
	}
	target, err := v.metadata(assoc.Target)
	if err != nil {
		return hop{}, "", err
	}
	column := f.ColumnName()
	if tf, ok := target.Field(f.Name); ok {
		column = tf.ColumnName()
	}
	return hop{parentMeta: meta, assoc: assoc, target: target, level: level, locale: v.options.Locale}, column, nil
}

func (v *validator) granted(meta *ObjectMetadata, name string, public bool, kind RefKind) bool {
	if !public {
		return false
	}
	if v.engine.checker == nil {
		return true
	}
	return v.engine.checker.IsGranted(ActionRead, Ref{Entity: meta.Name, Name: name, Kind: kind})
}

// shapeValue checks the value shape required by the operator. Scalars given
// to unbounded collection operators are wrapped.
func shapeValue(rule *RuleNode, path string) (any, *NodeError) {
	spec := operatorSpecs[rule.operator]
	if !spec.requiresValue {
		return nil, nil
	}
	value := rule.value
	if value == nil {
		return nil, newNodeError(path, "This value should not be null.", nil)
	}

	items, isList := asList(value)
	if !spec.collectible {
		if isList {
			return nil, newNodeError(path, "This value should be of type {{ type }}.", map[string]any{"type": "scalar"})
		}
		return value, nil
	}

	if !isList {
		items = []any{value}
	}
	for i, item := range items {
		if item == nil {
			return nil, newNodeError(fmt.Sprintf("%s[%d]", path, i), "This value should not be null.", nil)
		}
		if _, nested := asList(item); nested {
			return nil, newNodeError(fmt.Sprintf("%s[%d]", path, i), "This value should be of type {{ type }}.", map[string]any{"type": "scalar"})
		}
	}

	switch {
	case spec.size > 0 && len(items) != spec.size:
		return nil, newPluralNodeError(path,
			"This collection should contain exactly {{ limit }} element.|This collection should contain exactly {{ limit }} elements.",
			map[string]any{"limit": spec.size, "count": len(items)}, spec.size)
	case spec.size == 0 && len(items) == 0:
		return nil, newPluralNodeError(path,
			"This collection should contain {{ limit }} element or more.|This collection should contain {{ limit }} elements or more.",
			map[string]any{"limit": 1, "count": 0}, 1)
	}
	return items, nil
}

func coercionType(rule *RuleNode, f *Field) FieldType {
	switch rule.operator {
	case OpContains, OpNotContains, OpBeginsWith, OpNotBeginsWith, OpEndsWith, OpNotEndsWith:
		return FieldTypeString
	}
	return f.Type
}

func coerceValue(rule *RuleNode, rf resolvedField, value any, path string) (any, []*NodeError) {
	typ := coercionType(rule, rf.field)
	convert := func(x any, p string) (any, *NodeError) {
		c, err := coerceScalar(typ, x)
		if err != nil {
			e := newNodeError(p, "This value should be of type {{ type }}.", map[string]any{"type": typ, "value": x})
			e.Cause = err
			return nil, e
		}
		return retype(c, rf.storedAs), nil
	}

	items, isList := value.([]any)
	if !isList {
		c, e := convert(value, path)
		if e != nil {
			return nil, []*NodeError{e}
		}
		return c, nil
	}

	var errs []*NodeError
	out := make([]any, len(items))
	for i, item := range items {
		c, e := convert(item, fmt.Sprintf("%s[%d]", path, i))
		if e != nil {
			errs = append(errs, e)
			continue
		}
		out[i] = c
	}
	if len(errs) != 0 {
		return nil, errs
	}
	return out, nil
}

// checkConstraints runs the field constraints on a coerced value. Collection
// values are checked element by element.
func (v *validator) checkConstraints(rule *RuleNode, f *Field, value any, path string) ([]*NodeError, error) {
	if len(f.Constraints) == 0 {
		return nil, nil
	}
	items, isList := value.([]any)
	if !isList {
		return v.checkConstraintValue(rule, f, value, path)
	}
	var errs []*NodeError
	for i, item := range items {
		e, err := v.checkConstraintValue(rule, f, item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		errs = append(errs, e...)
	}
	return errs, nil
}

func (v *validator) checkConstraintValue(rule *RuleNode, f *Field, value any, path string) ([]*NodeError, error) {
	var errs []*NodeError
	for _, c := range f.Constraints {
		prg, err := v.engine.constraints.program(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("filter: field %s: %w", f.Name, err)
		}
		ok, evalErr := evalConstraint(prg, rule, value)
		if evalErr == nil && ok {
			continue
		}
		msg := c.Message
		if msg == "" {
			msg = "This value is not valid."
		}
		e := newNodeError(path, msg, map[string]any{"field": rule.field, "value": value})
		e.Cause = evalErr
		errs = append(errs, e)
	}
	return errs, nil
}
