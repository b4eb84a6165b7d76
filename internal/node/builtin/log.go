package builtin

import (
	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/expr"
	"github.com/loomwork/loom/internal/node"
)

// LogDescriptor describes the "log" node: writes an interpolated message
// to the run's structured logger and always takes its single edge.
var LogDescriptor = node.Descriptor{
	ID:          "log",
	Category:    "io",
	Description: "writes an interpolated message to the execution log",
	Edges:       []string{"success?"},
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{"type": "string"},
			"level":   map[string]interface{}{"type": "string", "enum": []string{"debug", "info", "warn", "error"}},
		},
		"required": []string{"message"},
	},
	Predecessors: []string{"math", "logic", "httpRequest", "editFields", "transform"},
}

type logNode struct{}

// NewLog constructs the log node factory.
func NewLog() node.Node { return logNode{} }

func (logNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	message, _ := ctx.Config["message"].(string)
	message = expr.Interpolate(message, ctx.State)

	level, _ := ctx.Config["level"].(string)
	logAt(ctx, level, message)

	return node.EdgeMap{
		{Name: "success?", Payload: func() (interface{}, bool) {
			return map[string]interface{}{"loggedMessage": message}, true
		}},
	}, nil
}

func logAt(ctx *execctx.Context, level, message string) {
	if ctx.Logger == nil {
		return
	}
	switch level {
	case "debug":
		ctx.Logger.Debug(message)
	case "warn":
		ctx.Logger.Warn(message)
	case "error":
		ctx.Logger.Error(message)
	default:
		ctx.Logger.Info(message)
	}
}
