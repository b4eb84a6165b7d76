package builtin

import (
	"fmt"

	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/expr"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/value"
)

// EditFieldsDescriptor describes the "editFields" node (§4.D.1.f): an
// ordered block of path -> value-expression assignments applied directly
// to a working copy of state before the node's single edge fires.
var EditFieldsDescriptor = node.Descriptor{
	ID:          "editFields",
	Category:    "state",
	Description: "assigns resolved field values onto workflow state",
	Edges:       []string{"success?"},
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"fields": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "object"},
			},
		},
		"required": []string{"fields"},
	},
}

// Field is one path/value assignment within an editFields block.
type Field struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

type editFieldsNode struct{}

// NewEditFields constructs the editFields node factory.
func NewEditFields() node.Node { return editFieldsNode{} }

func (editFieldsNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	fields, err := parseFields(ctx.Config["fields"])
	if err != nil {
		return nil, err
	}

	patch := value.Object{}
	for _, f := range fields {
		resolved, err := resolveFieldValue(f.Value, ctx.State)
		if err != nil {
			return nil, fmt.Errorf("editFields: field %q: %w", f.Path, err)
		}
		if err := value.Set(patch, f.Path, resolved); err != nil {
			return nil, fmt.Errorf("editFields: field %q: %w", f.Path, err)
		}
	}

	return node.EdgeMap{
		{Name: "success?", Payload: func() (interface{}, bool) {
			return patch, true
		}},
	}, nil
}

func parseFields(raw interface{}) ([]Field, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("editFields: \"fields\" must be an array")
	}
	fields := make([]Field, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("editFields: each field entry must be an object")
		}
		path, _ := m["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("editFields: field entry missing \"path\"")
		}
		fields = append(fields, Field{Path: path, Value: m["value"]})
	}
	return fields, nil
}

// resolveFieldValue evaluates a field's value expression: a whole-string
// "$.path" reference resolves directly, a string containing one or more
// embedded "$.path" tokens alongside operators (e.g. "$.index + 1")
// evaluates through EvalWithRefs, anything else resolves via ResolveRefs.
func resolveFieldValue(v interface{}, state value.Object) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return expr.ResolveRefs(v, state), nil
	}
	if looksLikeCompoundExpr(s) {
		return expr.EvalWithRefs(s, state)
	}
	return expr.ResolveRefs(s, state), nil
}

func looksLikeCompoundExpr(s string) bool {
	for _, r := range s {
		switch r {
		case '+', '-', '*', '/', '>', '<', '=', '!', '&', '|':
			return true
		}
	}
	return false
}
