package filter

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
	exprv1 "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// constraintSet compiles and caches field constraint programs. It is safe
// for concurrent use.
type constraintSet struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func newConstraintEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("raw", cel.DynType),
		cel.Variable("operator", cel.StringType),
		cel.Variable("field", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func newConstraintSet() (*constraintSet, error) {
	env, err := newConstraintEnv()
	if err != nil {
		return nil, err
	}
	return &constraintSet{env: env, programs: map[string]cel.Program{}}, nil
}

// ValidateConstraint reports whether expr is a usable constraint: it must
// compile, evaluate to a boolean and reference `value` or `raw`.
func ValidateConstraint(expr string) error {
	env, err := newConstraintEnv()
	if err != nil {
		return err
	}
	_, err = compileConstraint(env, expr)
	return err
}

func compileConstraint(env *cel.Env, expr string) (*cel.Ast, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("constraint expression is empty")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile constraint %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("constraint %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to convert AST: %w", err)
	}
	idents := map[string]bool{}
	collectIdents(parsed.GetExpr(), idents)
	if !idents["value"] && !idents["raw"] {
		return nil, fmt.Errorf("constraint %q does not reference value or raw", expr)
	}
	return ast, nil
}

func collectIdents(expr *exprv1.Expr, out map[string]bool) {
	if expr == nil {
		return
	}
	switch v := expr.ExprKind.(type) {
	case *exprv1.Expr_IdentExpr:
		out[v.IdentExpr.GetName()] = true
	case *exprv1.Expr_SelectExpr:
		collectIdents(v.SelectExpr.GetOperand(), out)
	case *exprv1.Expr_CallExpr:
		collectIdents(v.CallExpr.GetTarget(), out)
		for _, arg := range v.CallExpr.GetArgs() {
			collectIdents(arg, out)
		}
	case *exprv1.Expr_ListExpr:
		for _, elem := range v.ListExpr.GetElements() {
			collectIdents(elem, out)
		}
	case *exprv1.Expr_StructExpr:
		for _, entry := range v.StructExpr.GetEntries() {
			collectIdents(entry.GetMapKey(), out)
			collectIdents(entry.GetValue(), out)
		}
	case *exprv1.Expr_ComprehensionExpr:
		comp := v.ComprehensionExpr
		collectIdents(comp.GetIterRange(), out)
		collectIdents(comp.GetAccuInit(), out)
		collectIdents(comp.GetLoopCondition(), out)
		collectIdents(comp.GetLoopStep(), out)
		collectIdents(comp.GetResult(), out)
	}
}

func (c *constraintSet) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.programs[expr]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, err := compileConstraint(c.env, expr)
	if err != nil {
		return nil, err
	}
	prg, err = c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build program for constraint %q: %w", expr, err)
	}

	c.mu.Lock()
	c.programs[expr] = prg
	c.mu.Unlock()
	return prg, nil
}

// evalConstraint runs a compiled constraint against a rule value.
func evalConstraint(prg cel.Program, rule *RuleNode, value any) (bool, error) {
	out, _, err := prg.Eval(map[string]any{
		"value":    celValue(value),
		"raw":      celValue(rule.Value()),
		"operator": string(rule.Operator()),
		"field":    rule.Field(),
	})
	if err != nil {
		return false, err
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("constraint returned %T", out.Value())
	}
	return ok, nil
}

func celValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case uuid.UUID:
		return x.String()
	case time.Time:
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = celValue(e)
		}
		return out
	default:
		return v
	}
}
