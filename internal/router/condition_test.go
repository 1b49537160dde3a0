package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionNode_Unmarshal(t *testing.T) {
	t.Run("leaf", func(t *testing.T) {
		var n ConditionNode
		err := json.Unmarshal([]byte(`{"field":"genre","operator":"contains","value":"anime"}`), &n)
		require.NoError(t, err)
		require.NotNil(t, n.Leaf)
		assert.Nil(t, n.Group)
		assert.Equal(t, "genre", n.Leaf.Field)
		assert.Equal(t, "contains", n.Leaf.Operator)
		assert.Equal(t, "anime", n.Leaf.Value)
	})

	t.Run("group with nested leaf", func(t *testing.T) {
		var n ConditionNode
		err := json.Unmarshal([]byte(`{
			"operator": "AND",
			"conditions": [
				{"field": "genre", "operator": "contains", "value": "anime"},
				{"operator": "OR", "conditions": [
					{"field": "year", "operator": "equals", "value": 2020}
				]}
			]
		}`), &n)
		require.NoError(t, err)
		require.NotNil(t, n.Group)
		assert.Nil(t, n.Leaf)
		assert.Equal(t, GroupAnd, n.Group.Operator)
		require.Len(t, n.Group.Conditions, 2)
		assert.NotNil(t, n.Group.Conditions[0].Leaf)
		assert.NotNil(t, n.Group.Conditions[1].Group)
	})

	t.Run("neither field nor conditions", func(t *testing.T) {
		var n ConditionNode
		err := json.Unmarshal([]byte(`{"operator":"AND"}`), &n)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedCondition)
	})
}

func TestConditionNode_ValidateShape(t *testing.T) {
	valid := NewGroup(ConditionGroup{
		Operator: GroupOr,
		Conditions: []ConditionNode{
			NewLeaf(Condition{Field: "genre", Operator: "contains", Value: "horror"}),
		},
	})
	require.NoError(t, valid.ValidateShape())

	missingOp := NewLeaf(Condition{Field: "genre"})
	assert.ErrorIs(t, missingOp.ValidateShape(), ErrMalformedCondition)

	badGroup := NewGroup(ConditionGroup{Operator: "XOR"})
	assert.ErrorIs(t, badGroup.ValidateShape(), ErrMalformedCondition)

	var empty ConditionNode
	assert.ErrorIs(t, empty.ValidateShape(), ErrMalformedCondition)

	// Errors surface from nested children too.
	nested := NewGroup(ConditionGroup{
		Operator:   GroupAnd,
		Conditions: []ConditionNode{NewLeaf(Condition{Operator: "equals"})},
	})
	assert.ErrorIs(t, nested.ValidateShape(), ErrMalformedCondition)
}

func TestNumberRange_Contains(t *testing.T) {
	min, max := 2000.0, 2009.0

	// Both bounds are inclusive.
	r := NumberRange{Min: &min, Max: &max}
	assert.True(t, r.Contains(2000))
	assert.True(t, r.Contains(2009))
	assert.False(t, r.Contains(1999))
	assert.False(t, r.Contains(2010))

	// Open bounds are unbounded.
	assert.True(t, NumberRange{Min: &min}.Contains(9999))
	assert.True(t, NumberRange{Max: &max}.Contains(-50))
}

func TestParseGUIDs(t *testing.T) {
	set := ParseGUIDs([]string{"tmdb:603", "tvdb:81189", "imdb:tt0133093", "garbage", "plex:abc"})
	assert.Equal(t, int64(603), set.TMDB)
	assert.Equal(t, int64(81189), set.TVDB)
	assert.Equal(t, "tt0133093", set.IMDB)

	// First occurrence wins.
	set = ParseGUIDs([]string{"tmdb:1", "tmdb:2"})
	assert.Equal(t, int64(1), set.TMDB)
}
