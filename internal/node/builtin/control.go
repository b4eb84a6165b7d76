package builtin

import (
	"fmt"
	"time"

	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/expr"
	"github.com/loomwork/loom/internal/node"
)

// DelayDescriptor describes the "delay" node: pauses for a fixed duration
// before taking its single edge, honoring cooperative cancellation.
var DelayDescriptor = node.Descriptor{
	ID:          "delay",
	Category:    "control",
	Description: "pauses execution for a fixed duration",
	Edges:       []string{"success?"},
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"milliseconds": map[string]interface{}{"type": "number"}},
		"required":   []string{"milliseconds"},
	},
}

type delayNode struct{}

// NewDelay constructs the delay node factory.
func NewDelay() node.Node { return delayNode{} }

func (delayNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	ms, err := toFloat(ctx.Config["milliseconds"])
	if err != nil {
		return nil, fmt.Errorf("delay: %w", err)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Cancel:
		return nil, fmt.Errorf("delay: cancelled")
	case <-ctx.GoContext.Done():
		return nil, ctx.GoContext.Err()
	}

	return node.EdgeMap{
		{Name: "success?", Payload: func() (interface{}, bool) { return nil, true }},
	}, nil
}

// NoopDescriptor describes the "noop" node: always takes its single edge
// without touching state. Useful as a sub-flow join point or placeholder.
var NoopDescriptor = node.Descriptor{
	ID:          "noop",
	Category:    "control",
	Description: "takes its single edge without side effects",
	Edges:       []string{"success?"},
}

type noopNode struct{}

// NewNoop constructs the noop node factory.
func NewNoop() node.Node { return noopNode{} }

func (noopNode) Execute(*execctx.Context) (node.EdgeMap, error) {
	return node.EdgeMap{
		{Name: "success?", Payload: func() (interface{}, bool) { return nil, true }},
	}, nil
}

// TransformDescriptor describes the "transform" node: reshapes state
// through a free-form expr-lang expression and assigns the result to an
// output variable.
var TransformDescriptor = node.Descriptor{
	ID:          "transform",
	Category:    "compute",
	Description: "reshapes state through an expression and assigns the result",
	Edges:       []string{"success?", "error?"},
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression":     map[string]interface{}{"type": "string"},
			"outputVariable": map[string]interface{}{"type": "string"},
		},
		"required": []string{"expression"},
	},
}

type transformNode struct{}

// NewTransform constructs the transform node factory.
func NewTransform() node.Node { return transformNode{} }

func (transformNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	expression, _ := ctx.Config["expression"].(string)
	outVar, _ := ctx.Config["outputVariable"].(string)
	if outVar == "" {
		outVar = "transformResult"
	}

	out, err := expr.EvalExpr(expression, ctx.State)
	if err != nil {
		return node.EdgeMap{
			{Name: "error?", Payload: func() (interface{}, bool) {
				return map[string]interface{}{"error": err.Error()}, true
			}},
		}, nil
	}

	return node.EdgeMap{
		{Name: "success?", Payload: func() (interface{}, bool) {
			return map[string]interface{}{outVar: out}, true
		}},
	}, nil
}

// SwitchDescriptor describes the "switch" node: multi-way branch on a
// resolved value against a set of named cases, falling through to a
// "default?" edge when nothing matches.
var SwitchDescriptor = node.Descriptor{
	ID:          "switch",
	Category:    "control",
	Description: "branches on a resolved value against named cases",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"value": map[string]interface{}{},
			"cases": map[string]interface{}{"type": "object"},
		},
		"required": []string{"value", "cases"},
	},
}

type switchNode struct{}

// NewSwitch constructs the switch node factory.
func NewSwitch() node.Node { return switchNode{} }

func (switchNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	resolved := expr.ResolveRefs(ctx.Config["value"], ctx.State)
	key := fmt.Sprintf("%v", resolved)

	cases, _ := ctx.Config["cases"].(map[string]interface{})
	_, matched := cases[key]

	edges := make(node.EdgeMap, 0, len(cases)+1)
	for caseKey := range cases {
		ck := caseKey
		edgeName := ck + "?"
		edges = append(edges, node.Edge{
			Name: edgeName,
			Payload: func() (interface{}, bool) {
				if ck != key {
					return nil, false
				}
				return map[string]interface{}{"switchValue": resolved}, true
			},
		})
	}
	edges = append(edges, node.Edge{
		Name: "default?",
		Payload: func() (interface{}, bool) {
			if matched {
				return nil, false
			}
			return map[string]interface{}{"switchValue": resolved}, true
		},
	})

	return edges, nil
}
