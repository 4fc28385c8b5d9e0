// Package condition implements the expression language used to guard
// dependency edges. Expressions compare the source activity state and named
// context fields; they never execute host code.
//
//	status == "COMPLETED" && context.campaign.budget > 100
//	source.score >= 0.8 || $.region == "emea"
package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mohitkumar/procflow/model"
	"github.com/oliveagle/jsonpath"
)

// Env is what an expression can see. Bare names resolve against Context.
type Env struct {
	Status  model.Status
	Source  map[string]any
	Context map[string]any
}

type Expression struct {
	source string
	root   node
}

func Parse(expr string) (*Expression, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", expr, err)
	}
	return &Expression{source: expr, root: root}, nil
}

func MustParse(expr string) *Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expression) String() string {
	return e.source
}

// Eval reports whether the expression holds for env.
func (e *Expression) Eval(env Env) (bool, error) {
	v, err := e.root.eval(env)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", e.source, err)
	}
	return truthy(v), nil
}

func (l *literal) eval(Env) (any, error) {
	return l.value, nil
}

func (id *identifier) eval(env Env) (any, error) {
	parts := strings.Split(id.name, ".")
	switch parts[0] {
	case "status":
		if len(parts) == 1 {
			return string(env.Status), nil
		}
	case "source":
		if len(parts) == 2 && parts[1] == "status" {
			return string(env.Status), nil
		}
		if len(parts) > 1 {
			return lookup(env.Source, parts[1:]), nil
		}
	case "context":
		if len(parts) > 1 {
			return lookup(env.Context, parts[1:]), nil
		}
		return env.Context, nil
	}
	return lookup(env.Context, parts), nil
}

func (jp *jsonPath) eval(env Env) (any, error) {
	if env.Context == nil {
		return nil, nil
	}
	v, err := jsonpath.JsonPathLookup(env.Context, jp.path)
	if err != nil {
		if errors.Is(err, jsonpath.ErrGetFromNullObj) || strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (u *unary) eval(env Env) (any, error) {
	v, err := u.operand.eval(env)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

func (b *binary) eval(env Env) (any, error) {
	left, err := b.left.eval(env)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case "&&":
		if !truthy(left) {
			return false, nil
		}
		right, err := b.right.eval(env)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "||":
		if truthy(left) {
			return true, nil
		}
		right, err := b.right.eval(env)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}
	right, err := b.right.eval(env)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	}
	return order(b.op, left, right)
}

func lookup(data map[string]any, parts []string) any {
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	return cur
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	}
	return false
}

func order(op string, a, b any) (any, error) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return compare(op, fa < fb, fa == fb), nil
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return compare(op, sa < sb, sa == sb), nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T %s %T", a, op, b)
}

func compare(op string, less, eq bool) bool {
	switch op {
	case "<":
		return less
	case "<=":
		return less || eq
	case ">":
		return !less && !eq
	default:
		return !less
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
