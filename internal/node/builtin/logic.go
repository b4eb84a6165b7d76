package builtin

import (
	"fmt"

	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/node"
)

// LogicDescriptor describes the "logic" node: boolean comparison over two
// resolved operands, branching on "true?"/"false?".
var LogicDescriptor = node.Descriptor{
	ID:          "logic",
	Category:    "control",
	Description: "evaluates a comparison and branches true? / false?",
	Edges:       []string{"true?", "false?"},
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operator": map[string]interface{}{"type": "string", "enum": []string{"eq", "neq", "gt", "gte", "lt", "lte", "and", "or", "not"}},
			"left":     map[string]interface{}{},
			"right":    map[string]interface{}{},
		},
		"required": []string{"operator"},
	},
	Successors: []string{"math", "log", "editFields", "httpRequest", "switch"},
}

type logicNode struct{}

// NewLogic constructs the logic node factory.
func NewLogic() node.Node { return logicNode{} }

func (logicNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	result, err := evalLogic(ctx.Config)
	if err != nil {
		return nil, err
	}

	return node.EdgeMap{
		{Name: "true?", Payload: func() (interface{}, bool) {
			if !result {
				return nil, false
			}
			return map[string]interface{}{"conditionResult": true}, true
		}},
		{Name: "false?", Payload: func() (interface{}, bool) {
			if result {
				return nil, false
			}
			return map[string]interface{}{"conditionResult": false}, true
		}},
	}, nil
}

func evalLogic(config map[string]interface{}) (bool, error) {
	op, _ := config["operator"].(string)
	left := config["left"]

	switch op {
	case "and", "or", "not":
		lb, _ := left.(bool)
		if op == "not" {
			return !lb, nil
		}
		rb, _ := config["right"].(bool)
		if op == "and" {
			return lb && rb, nil
		}
		return lb || rb, nil
	case "eq":
		return compareEqual(left, config["right"]), nil
	case "neq":
		return !compareEqual(left, config["right"]), nil
	case "gt", "gte", "lt", "lte":
		lf, lok := toFloat(left)
		rf, rerr := toFloatVal(config["right"])
		if lok != nil || rerr != nil {
			return false, fmt.Errorf("logic: operator %q requires numeric operands", op)
		}
		switch op {
		case "gt":
			return lf > rf, nil
		case "gte":
			return lf >= rf, nil
		case "lt":
			return lf < rf, nil
		default:
			return lf <= rf, nil
		}
	default:
		return false, fmt.Errorf("logic: unknown operator %q", op)
	}
}

func toFloatVal(v interface{}) (float64, error) {
	f, err := toFloat(v)
	return f, err
}

func compareEqual(a, b interface{}) bool {
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
