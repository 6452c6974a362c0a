package summary

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Derived is a field quantity computed from other summary values with a CEL
// expression, for example `field.FOPR / (field.FWPR + 1.0)`. The expression
// sees three maps: field (key -> value), well and group
// (entity -> key -> value). It must produce a double.
type Derived struct {
	key        string
	expression string
	program    cel.Program
}

var derivedEnv = mustEnv()

func mustEnv() *cel.Env {
	values := cel.MapType(cel.StringType, cel.DoubleType)
	env, err := cel.NewEnv(
		cel.Variable("field", values),
		cel.Variable("well", cel.MapType(cel.StringType, values)),
		cel.Variable("group", cel.MapType(cel.StringType, values)),
	)
	if err != nil {
		panic(fmt.Sprintf("summary: failed to create CEL environment: %v", err))
	}
	return env
}

// NewDerived compiles expression for the field quantity key. Keys must be
// field keys (starting with F) so conditions can reference them.
func NewDerived(key, expression string) (*Derived, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if len(key) < 2 || key[0] != 'F' {
		return nil, fmt.Errorf("derived quantity %q: key must be a field key", key)
	}

	ast, issues := derivedEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("derived quantity %s: compile error: %w", key, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return nil, fmt.Errorf("derived quantity %s: expression must produce a double, got %s", key, ast.OutputType())
	}

	// Cost limit guards against runaway expressions
	prog, err := derivedEnv.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("derived quantity %s: program creation error: %w", key, err)
	}

	return &Derived{key: key, expression: expression, program: prog}, nil
}

func (d *Derived) Key() string        { return d.key }
func (d *Derived) Expression() string { return d.expression }

// eval reports false when the expression refers to a missing value or fails
func (d *Derived) eval(field map[string]float64, wells, groups map[string]map[string]float64) (float64, bool) {
	out, _, err := d.program.Eval(map[string]any{
		"field": field,
		"well":  wells,
		"group": groups,
	})
	if err != nil {
		return 0, false
	}
	v, ok := out.Value().(float64)
	return v, ok
}
