package builtin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomwork/loom/internal/value"
)

func TestDelay_FiresSuccessAfterDuration(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"milliseconds": 1.0})
	start := time.Now()
	edges, err := NewDelay().Execute(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), time.Millisecond)
	require.Equal(t, "success?", edges[0].Name)
}

func TestDelay_CancelledReturnsError(t *testing.T) {
	cancel := make(chan struct{})
	close(cancel)
	ctx := newCtx(map[string]interface{}{"milliseconds": 1000.0})
	ctx.Cancel = cancel

	_, err := NewDelay().Execute(ctx)
	require.Error(t, err)
}

func TestNoop_AlwaysSucceeds(t *testing.T) {
	ctx := newCtx(nil)
	edges, err := NewNoop().Execute(ctx)
	require.NoError(t, err)
	_, ok := edges[0].Payload()
	require.True(t, ok)
}

func TestTransform_EvaluatesExpression(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"expression": "index + 1", "outputVariable": "next"})
	ctx.State = value.Object{"index": 4.0}

	edges, err := NewTransform().Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "success?", edges[0].Name)

	data, _ := edges[0].Payload()
	require.Equal(t, 5.0, data.(map[string]interface{})["next"])
}

func TestTransform_InvalidExpressionTakesErrorEdge(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"expression": "((("})
	edges, err := NewTransform().Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "error?", edges[0].Name)
}

func TestSwitch_MatchesNamedCase(t *testing.T) {
	ctx := newCtx(map[string]interface{}{
		"value": "$.status",
		"cases": map[string]interface{}{"ok": nil, "fail": nil},
	})
	ctx.State = value.Object{"status": "ok"}

	edges, err := NewSwitch().Execute(ctx)
	require.NoError(t, err)

	var fired []string
	for _, e := range edges {
		if _, ok := e.Payload(); ok {
			fired = append(fired, e.Name)
		}
	}
	require.Equal(t, []string{"ok?"}, fired)
}

func TestSwitch_NoMatchTakesDefault(t *testing.T) {
	ctx := newCtx(map[string]interface{}{
		"value": "$.status",
		"cases": map[string]interface{}{"ok": nil},
	})
	ctx.State = value.Object{"status": "weird"}

	edges, err := NewSwitch().Execute(ctx)
	require.NoError(t, err)

	var fired []string
	for _, e := range edges {
		if _, ok := e.Payload(); ok {
			fired = append(fired, e.Name)
		}
	}
	require.Equal(t, []string{"default?"}, fired)
}
