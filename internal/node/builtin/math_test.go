package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/value"
)

func newCtx(config map[string]interface{}) *execctx.Context {
	cancel := make(chan struct{})
	return &execctx.Context{
		GoContext: context.Background(),
		State:     value.Object{},
		Cancel:    cancel,
		Config:    config,
	}
}

func TestMath_Add(t *testing.T) {
	ctx := newCtx(map[string]interface{}{
		"operation": "add",
		"values":    []interface{}{1.0, 2.0, 3.0},
	})

	edges, err := NewMath().Execute(ctx)
	require.NoError(t, err)

	data, ok := edges[0].Payload()
	require.True(t, ok)
	require.Equal(t, "success?", edges[0].Name)
	require.Equal(t, 6.0, data.(map[string]interface{})["mathResult"])
}

func TestMath_DivideByZero(t *testing.T) {
	ctx := newCtx(map[string]interface{}{
		"operation": "divide",
		"values":    []interface{}{10.0, 0.0},
	})

	edges, err := NewMath().Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "error?", edges[0].Name)

	data, ok := edges[0].Payload()
	require.True(t, ok)
	require.Contains(t, data.(map[string]interface{})["error"].(string), "division by zero")
}

func TestMath_UnknownOperationErrorsEdge(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"operation": "bogus", "values": []interface{}{1.0}})
	edges, err := NewMath().Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "error?", edges[0].Name)
}
