// Package builtin implements the bundled ("universal") node types:
// arithmetic, boolean logic, logging, field assignment, HTTP calls,
// delay and JSON transforms — grounded in the field-by-field behavior of
// the teacher's internal/executor/actions package, generalized to the
// EdgeMap/Execute contract of internal/node.
package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/expr"
	"github.com/loomwork/loom/internal/node"
)

// MathDescriptor describes the "math" node.
var MathDescriptor = node.Descriptor{
	ID:          "math",
	Category:    "compute",
	Description: "performs arithmetic over resolved operand values",
	Edges:       []string{"success?", "error?"},
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation":      map[string]interface{}{"type": "string", "enum": []string{"add", "subtract", "multiply", "divide", "expression"}},
			"values":         map[string]interface{}{"type": "array"},
			"expression":     map[string]interface{}{"type": "string"},
			"outputVariable": map[string]interface{}{"type": "string"},
		},
		"required": []string{"operation"},
	},
	Successors: []string{"log", "editFields", "switch"},
}

type mathNode struct{}

// NewMath constructs the math node factory.
func NewMath() node.Node { return mathNode{} }

func (mathNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	op, _ := ctx.Config["operation"].(string)
	outVar, _ := ctx.Config["outputVariable"].(string)
	if outVar == "" {
		outVar = "mathResult"
	}

	result, err := evalMath(op, ctx.Config)
	if err != nil {
		return node.EdgeMap{
			{Name: "error?", Payload: func() (interface{}, bool) {
				return map[string]interface{}{"error": err.Error()}, true
			}},
		}, nil
	}

	return node.EdgeMap{
		{Name: "success?", Payload: func() (interface{}, bool) {
			return map[string]interface{}{outVar: result}, true
		}},
	}, nil
}

func evalMath(op string, config map[string]interface{}) (float64, error) {
	if op == "expression" {
		exprStr, _ := config["expression"].(string)
		out, err := expr.EvalExpr(exprStr, map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		return toFloat(out)
	}

	values, _ := config["values"].([]interface{})
	if len(values) == 0 {
		return 0, fmt.Errorf("math: operation %q requires at least one value", op)
	}
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := toFloat(v)
		if err != nil {
			return 0, fmt.Errorf("math: non-numeric value %v: %w", v, err)
		}
		nums = append(nums, f)
	}

	switch op {
	case "add":
		sum := 0.0
		for _, n := range nums {
			sum += n
		}
		return sum, nil
	case "subtract":
		result := nums[0]
		for _, n := range nums[1:] {
			result -= n
		}
		return result, nil
	case "multiply":
		product := 1.0
		for _, n := range nums {
			product *= n
		}
		return product, nil
	case "divide":
		result := nums[0]
		for _, n := range nums[1:] {
			if n == 0 {
				return 0, fmt.Errorf("math: division by zero")
			}
			result /= n
		}
		return result, nil
	default:
		return 0, fmt.Errorf("math: unknown operation %q", op)
	}
}

// toFloat accepts both plain float64 (the shape initialState and node
// output payloads decode to) and json.Number (the shape a node
// invocation's own Config literals decode to, since the workflow parser
// reads them with json.Decoder.UseNumber() to preserve round-trip
// fidelity — see internal/workflow's NodeInvocation.UnmarshalJSON).
func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}
