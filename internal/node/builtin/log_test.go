package builtin

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomwork/loom/internal/value"
)

func TestLog_InterpolatesMessageAndTakesEdge(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"message": "Result: {{$.mathResult}}"})
	ctx.State = value.Object{"mathResult": 30.0}
	ctx.Logger = slog.Default()

	edges, err := NewLog().Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "success?", edges[0].Name)

	data, ok := edges[0].Payload()
	require.True(t, ok)
	require.Equal(t, "Result: 30", data.(map[string]interface{})["loggedMessage"])
}

func TestLog_NilLoggerDoesNotPanic(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"message": "hello"})
	require.NotPanics(t, func() {
		_, err := NewLog().Execute(ctx)
		require.NoError(t, err)
	})
}
