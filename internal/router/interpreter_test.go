package router

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testInterpreter wires a registry over store-less evaluators. Leaf
// evaluation never touches the rule store, so this exercises the pure
// condition path.
func testInterpreter() *Interpreter {
	logger := slog.New(slog.DiscardHandler)
	reg := NewRegistry()
	interp := NewInterpreter(reg, logger)
	reg.Register(NewUserEvaluator(nil, logger))
	reg.Register(NewGenreEvaluator(nil, logger))
	reg.Register(NewYearEvaluator(nil, nil, logger))
	reg.Register(NewLanguageEvaluator(nil, nil, logger))
	reg.Register(NewCertificationEvaluator(nil, logger))
	return interp
}

func TestInterpreter_EmptyGroupIdentities(t *testing.T) {
	interp := testInterpreter()
	item := ContentItem{Title: "Anything"}
	rctx := RoutingContext{ContentType: ContentTypeMovie}

	emptyAnd := NewGroup(ConditionGroup{Operator: GroupAnd})
	assert.True(t, interp.Evaluate(t.Context(), emptyAnd, item, rctx))

	emptyOr := NewGroup(ConditionGroup{Operator: GroupOr})
	assert.False(t, interp.Evaluate(t.Context(), emptyOr, item, rctx))
}

func TestInterpreter_LeafNegation(t *testing.T) {
	interp := testInterpreter()
	item := ContentItem{Title: "Spirited Away", Genres: []string{"Anime", "Fantasy"}}
	rctx := RoutingContext{ContentType: ContentTypeMovie}

	match := NewLeaf(Condition{Field: "genre", Operator: "contains", Value: "anime"})
	assert.True(t, interp.Evaluate(t.Context(), match, item, rctx))

	negated := NewLeaf(Condition{Field: "genre", Operator: "contains", Value: "anime", Negate: true})
	assert.False(t, interp.Evaluate(t.Context(), negated, item, rctx))

	negatedMiss := NewLeaf(Condition{Field: "genre", Operator: "contains", Value: "western", Negate: true})
	assert.True(t, interp.Evaluate(t.Context(), negatedMiss, item, rctx))
}

func TestInterpreter_GroupNegation(t *testing.T) {
	interp := testInterpreter()
	item := ContentItem{Title: "Spirited Away", Genres: []string{"Anime"}}
	rctx := RoutingContext{ContentType: ContentTypeMovie}

	group := NewGroup(ConditionGroup{
		Operator: GroupAnd,
		Negate:   true,
		Conditions: []ConditionNode{
			NewLeaf(Condition{Field: "genre", Operator: "contains", Value: "anime"}),
		},
	})
	assert.False(t, interp.Evaluate(t.Context(), group, item, rctx))
}

func TestInterpreter_FailClosed(t *testing.T) {
	interp := testInterpreter()
	item := ContentItem{Title: "Spirited Away", Genres: []string{"Anime"}}
	rctx := RoutingContext{ContentType: ContentTypeMovie}

	unknownField := NewLeaf(Condition{Field: "mood", Operator: "equals", Value: "dark"})
	assert.False(t, interp.Evaluate(t.Context(), unknownField, item, rctx))

	unknownOperator := NewLeaf(Condition{Field: "genre", Operator: "resembles", Value: "anime"})
	assert.False(t, interp.Evaluate(t.Context(), unknownOperator, item, rctx))

	var emptyNode ConditionNode
	assert.False(t, interp.Evaluate(t.Context(), emptyNode, item, rctx))
}

func TestInterpreter_YearBetweenInclusive(t *testing.T) {
	interp := testInterpreter()
	rctx := RoutingContext{ContentType: ContentTypeMovie}
	cond := NewLeaf(Condition{
		Field:    "year",
		Operator: "between",
		Value:    map[string]any{"min": float64(2000), "max": float64(2009)},
	})

	for year, want := range map[int]bool{1999: false, 2000: true, 2009: true, 2010: false} {
		item := ContentItem{Title: "X", Metadata: &ItemMetadata{Year: year}}
		assert.Equal(t, want, interp.Evaluate(t.Context(), cond, item, rctx), "year %d", year)
	}

	// No resolvable year evaluates false; the interpreter performs no I/O.
	noYear := ContentItem{Title: "X"}
	assert.False(t, interp.Evaluate(t.Context(), cond, noYear, rctx))
}

func TestInterpreter_LanguageCaseFolding(t *testing.T) {
	interp := testInterpreter()
	rctx := RoutingContext{ContentType: ContentTypeMovie}
	item := ContentItem{Title: "Amélie", Metadata: &ItemMetadata{OriginalLanguage: "FRANÇAIS"}}

	cond := NewLeaf(Condition{Field: "originalLanguage", Operator: "equals", Value: "français"})
	assert.True(t, interp.Evaluate(t.Context(), cond, item, rctx))

	notIn := NewLeaf(Condition{Field: "language", Operator: "notIn", Value: []any{"english", "german"}})
	assert.True(t, interp.Evaluate(t.Context(), notIn, item, rctx))
}

func TestInterpreter_UserMatching(t *testing.T) {
	interp := testInterpreter()
	item := ContentItem{Title: "X"}
	rctx := RoutingContext{
		ContentType: ContentTypeMovie,
		UserIDs:     []int64{7, 12},
		UserNames:   []string{"Alice", "bob"},
	}

	byID := NewLeaf(Condition{Field: "user", Operator: "in", Value: []any{float64(12)}})
	assert.True(t, interp.Evaluate(t.Context(), byID, item, rctx))

	byName := NewLeaf(Condition{Field: "user", Operator: "equals", Value: "ALICE"})
	assert.True(t, interp.Evaluate(t.Context(), byName, item, rctx))

	notIn := NewLeaf(Condition{Field: "user", Operator: "notIn", Value: []any{"carol"}})
	assert.True(t, interp.Evaluate(t.Context(), notIn, item, rctx))

	miss := NewLeaf(Condition{Field: "user", Operator: "in", Value: []any{float64(99)}})
	assert.False(t, interp.Evaluate(t.Context(), miss, item, rctx))
}

func TestInterpreter_CertificationMatching(t *testing.T) {
	interp := testInterpreter()
	rctx := RoutingContext{ContentType: ContentTypeMovie}
	item := ContentItem{Title: "X", Metadata: &ItemMetadata{Certification: "PG-13"}}

	equals := NewLeaf(Condition{Field: "certification", Operator: "equals", Value: "pg-13"})
	assert.True(t, interp.Evaluate(t.Context(), equals, item, rctx))

	contains := NewLeaf(Condition{Field: "certification", Operator: "contains", Value: "PG"})
	assert.True(t, interp.Evaluate(t.Context(), contains, item, rctx))

	regex := NewLeaf(Condition{Field: "certification", Operator: "regex", Value: "^pg"})
	assert.True(t, interp.Evaluate(t.Context(), regex, item, rctx))

	notEquals := NewLeaf(Condition{Field: "certification", Operator: "notEquals", Value: "R"})
	assert.True(t, interp.Evaluate(t.Context(), notEquals, item, rctx))
}

func TestInterpreter_ComposedTree(t *testing.T) {
	interp := testInterpreter()
	rctx := RoutingContext{ContentType: ContentTypeMovie, UserIDs: []int64{7}}
	tree := NewGroup(ConditionGroup{
		Operator: GroupAnd,
		Conditions: []ConditionNode{
			NewLeaf(Condition{Field: "genre", Operator: "contains", Value: "horror"}),
			NewLeaf(Condition{Field: "year", Operator: "greaterThan", Value: float64(2015)}),
			NewGroup(ConditionGroup{
				Operator: GroupOr,
				Conditions: []ConditionNode{
					NewLeaf(Condition{Field: "user", Operator: "in", Value: []any{float64(7)}}),
					NewLeaf(Condition{Field: "certification", Operator: "equals", Value: "R"}),
				},
			}),
		},
	})

	match := ContentItem{
		Title:    "Hereditary",
		Genres:   []string{"Horror", "Drama"},
		Metadata: &ItemMetadata{Year: 2018},
	}
	assert.True(t, interp.Evaluate(t.Context(), tree, match, rctx))

	tooOld := match
	tooOld.Metadata = &ItemMetadata{Year: 2010}
	assert.False(t, interp.Evaluate(t.Context(), tree, tooOld, rctx))

	wrongUser := RoutingContext{ContentType: ContentTypeMovie, UserIDs: []int64{99}}
	assert.False(t, interp.Evaluate(t.Context(), tree, match, wrongUser))
}
