package reflect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_CounterLoopShapeMatchesItsOwnPattern(t *testing.T) {
	def := mustParseDef(t, `{
		"id": "s2", "name": "s2", "version": "1.0.0",
		"initialState": {"index": 0},
		"workflow": [
			{"logic...": {
				"operator": "lt",
				"left": "$.index",
				"right": 3,
				"true?": [
					{"log": {"message": "iter {{$.index}}"}},
					{"editFields": {"fields": [{"path": "index", "value": "$.index + 1"}]}}
				],
				"false?": null
			}}
		]
	}`)

	matches := Detect(def)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Counter Loop", matches[0].Pattern, "the closest structural match for a logic-loop shape should be its own pattern")
	assert.Greater(t, matches[0].Confidence, 0.5)
}

func TestDetect_UnrelatedShapeScoresLow(t *testing.T) {
	def := mustParseDef(t, `{
		"id": "n1", "name": "n1", "version": "1.0.0",
		"initialState": {},
		"workflow": [{"noop": {"success?": null}}]
	}`)

	matches := Detect(def)
	for _, m := range matches {
		assert.Less(t, m.Confidence, 0.5)
	}
}

func TestGenerate_ConditionalBranchingFillsPlaceholders(t *testing.T) {
	def, err := Generate("Conditional Branching", map[string]interface{}{
		"value":        0.0,
		"comparison":   "gt",
		"threshold":    10.0,
		"trueMessage":  "above threshold",
		"falseMessage": "at or below threshold",
	})
	require.NoError(t, err)

	require.Len(t, def.Workflow, 1)
	logic := def.Workflow[0]
	assert.Equal(t, "logic", logic.NodeType)
	assert.Equal(t, "gt", logic.Config["operator"])

	right, ok := logic.Config["right"].(json.Number)
	require.True(t, ok, "right should decode as json.Number (Config decodes with UseNumber)")
	rightFloat, err := right.Float64()
	require.NoError(t, err)
	assert.Equal(t, 10.0, rightFloat)
}

func TestGenerate_UnknownPatternErrors(t *testing.T) {
	_, err := Generate("Not A Real Pattern", nil)
	assert.Error(t, err)
}
