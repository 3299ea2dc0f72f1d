package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchConditionsEmptyMatchesEverything(t *testing.T) {
	assert.True(t, matchConditions(nil, map[string]any{"a": 1}))
	assert.True(t, matchConditions(map[string]any{}, map[string]any{"a": 1}))
	assert.True(t, matchConditions(map[string]any{}, map[string]any{}))
}

func TestMatchConditionsStrictEquality(t *testing.T) {
	data := map[string]any{
		"status": "won",
		"amount": float64(100),
		"open":   true,
	}

	assert.True(t, matchConditions(map[string]any{"status": "won"}, data))
	assert.False(t, matchConditions(map[string]any{"status": "lost"}, data))
	assert.True(t, matchConditions(map[string]any{"open": true}, data))
	assert.False(t, matchConditions(map[string]any{"open": "true"}, data))
}

func TestMatchConditionsNumbersCompareByValue(t *testing.T) {
	data := map[string]any{"amount": float64(100)}

	assert.True(t, matchConditions(map[string]any{"amount": 100}, data))
	assert.True(t, matchConditions(map[string]any{"amount": float64(100)}, data))
	assert.False(t, matchConditions(map[string]any{"amount": 101}, data))
	assert.False(t, matchConditions(map[string]any{"amount": "100"}, data))
}

func TestMatchConditionsDottedPath(t *testing.T) {
	data := map[string]any{
		"deal": map[string]any{
			"stage": map[string]any{"name": "Qualified"},
		},
	}

	assert.True(t, matchConditions(map[string]any{"deal.stage.name": "Qualified"}, data))
	assert.False(t, matchConditions(map[string]any{"deal.stage.name": "Won"}, data))
}

func TestMatchConditionsMissingPathNeverMatches(t *testing.T) {
	data := map[string]any{"deal": map[string]any{"id": "d1"}}

	assert.False(t, matchConditions(map[string]any{"deal.stage": "x"}, data))
	assert.False(t, matchConditions(map[string]any{"missing": "x"}, data))
	// Path descending through a non-map value.
	assert.False(t, matchConditions(map[string]any{"deal.id.nested": "x"}, data))
	assert.False(t, matchConditions(map[string]any{"a": "x"}, map[string]any{}))
}

func TestMatchConditionsMultipleKeysAreConjunctive(t *testing.T) {
	data := map[string]any{"a": "1", "b": "2"}

	assert.True(t, matchConditions(map[string]any{"a": "1", "b": "2"}, data))
	assert.False(t, matchConditions(map[string]any{"a": "1", "b": "x"}, data))
}
