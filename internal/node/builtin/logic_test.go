package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogic_GreaterThanTakesTrueEdge(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"operator": "gt", "left": 5.0, "right": 3.0})
	edges, err := NewLogic().Execute(ctx)
	require.NoError(t, err)

	data, ok := edges[0].Payload()
	require.Equal(t, "true?", edges[0].Name)
	require.True(t, ok)
	require.Equal(t, true, data.(map[string]interface{})["conditionResult"])

	_, ok = edges[1].Payload()
	require.False(t, ok)
}

func TestLogic_EqFalseTakesFalseEdge(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"operator": "eq", "left": "a", "right": "b"})
	edges, err := NewLogic().Execute(ctx)
	require.NoError(t, err)

	_, ok := edges[0].Payload()
	require.False(t, ok)

	data, ok := edges[1].Payload()
	require.True(t, ok)
	require.Equal(t, false, data.(map[string]interface{})["conditionResult"])
}

func TestLogic_UnknownOperatorErrors(t *testing.T) {
	ctx := newCtx(map[string]interface{}{"operator": "xor"})
	_, err := NewLogic().Execute(ctx)
	require.Error(t, err)
}
