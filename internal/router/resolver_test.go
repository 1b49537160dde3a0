package router

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, *Store) {
	t.Helper()
	store := NewStore(setupTestDB(t))
	logger := slog.New(slog.DiscardHandler)
	registry, _ := NewDefaultRegistry(store, nil, logger)
	return NewResolver(registry, store, logger), store
}

func TestResolver_DefaultFallback(t *testing.T) {
	resolver, store := newTestResolver(t)
	defaultID := seedInstance(t, store, "radarr-main", TargetRadarr, true)

	item := ContentItem{Title: "Heat", Genres: []string{"Crime"}}
	decisions, err := resolver.Resolve(t.Context(), item, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, ActionRoute, d.Action)
	require.NotNil(t, d.Routing)
	assert.Equal(t, defaultID, d.Routing.InstanceID)
	// The fallback carries the instance's own stored configuration.
	assert.Equal(t, "HD-1080p", d.Routing.QualityProfile)
	assert.Equal(t, "/movies", d.Routing.RootFolder)
	assert.Zero(t, d.Routing.RuleID)
}

func TestResolver_NoDefaultNoMatch(t *testing.T) {
	resolver, store := newTestResolver(t)
	seedInstance(t, store, "radarr-extra", TargetRadarr, false)

	decisions, err := resolver.Resolve(t.Context(), ContentItem{Title: "Heat"},
		RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	assert.Nil(t, decisions)
}

func TestResolver_RuleRoutes(t *testing.T) {
	resolver, store := newTestResolver(t)
	seedInstance(t, store, "radarr-main", TargetRadarr, true)
	animeID := seedInstance(t, store, "radarr-anime", TargetRadarr, false)

	rule := genreRule("anime library", animeID, 60, "anime")
	rule.QualityProfile = "Bluray-1080p"
	rule.RootFolder = "/anime"
	require.NoError(t, store.CreateRule(rule))

	item := ContentItem{Title: "Spirited Away", Genres: []string{"Anime", "Fantasy"}}
	decisions, err := resolver.Resolve(t.Context(), item, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, ActionRoute, d.Action)
	require.NotNil(t, d.Routing)
	assert.Equal(t, animeID, d.Routing.InstanceID)
	assert.Equal(t, rule.ID, d.Routing.RuleID)
	assert.Equal(t, "anime library", d.Routing.RuleName)
	assert.Equal(t, "Bluray-1080p", d.Routing.QualityProfile)
	assert.Equal(t, "/anime", d.Routing.RootFolder)
}

func TestResolver_MultiInstanceFanOut(t *testing.T) {
	resolver, store := newTestResolver(t)
	mainID := seedInstance(t, store, "radarr-main", TargetRadarr, true)
	animeID := seedInstance(t, store, "radarr-anime", TargetRadarr, false)

	require.NoError(t, store.CreateRule(genreRule("fantasy to main", mainID, 40, "fantasy")))
	require.NoError(t, store.CreateRule(genreRule("anime shelf", animeID, 60, "anime")))

	item := ContentItem{Title: "Spirited Away", Genres: []string{"Anime", "Fantasy"}}
	decisions, err := resolver.Resolve(t.Context(), item, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	// Output ordered by instance id for determinism.
	assert.Equal(t, mainID, decisions[0].Routing.InstanceID)
	assert.Equal(t, animeID, decisions[1].Routing.InstanceID)
}

func TestResolver_SameInstanceConflict(t *testing.T) {
	resolver, store := newTestResolver(t)
	instID := seedInstance(t, store, "radarr-main", TargetRadarr, true)

	low := genreRule("low priority", instID, 10, "anime")
	high := genreRule("high priority", instID, 90, "anime")
	require.NoError(t, store.CreateRule(low))
	require.NoError(t, store.CreateRule(high))

	item := ContentItem{Title: "Akira", Genres: []string{"Anime"}}
	decisions, err := resolver.Resolve(t.Context(), item, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, high.ID, decisions[0].Routing.RuleID)
}

func TestResolver_ConflictTieBreaksOnRuleID(t *testing.T) {
	resolver, store := newTestResolver(t)
	instID := seedInstance(t, store, "radarr-main", TargetRadarr, true)

	first := genreRule("first", instID, 50, "anime")
	second := genreRule("second", instID, 50, "anime")
	require.NoError(t, store.CreateRule(first))
	require.NoError(t, store.CreateRule(second))

	item := ContentItem{Title: "Akira", Genres: []string{"Anime"}}
	decisions, err := resolver.Resolve(t.Context(), item, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, first.ID, decisions[0].Routing.RuleID)
}

func TestResolver_DisabledInstanceDropped(t *testing.T) {
	resolver, store := newTestResolver(t)
	defaultID := seedInstance(t, store, "radarr-main", TargetRadarr, true)
	animeID := seedInstance(t, store, "radarr-anime", TargetRadarr, false)

	require.NoError(t, store.CreateRule(genreRule("anime shelf", animeID, 60, "anime")))

	// Disable the rule's target after the rule exists.
	disabled := &Instance{Name: "radarr-anime", Type: TargetRadarr, Enabled: false}
	require.NoError(t, store.UpsertInstance(disabled))

	item := ContentItem{Title: "Akira", Genres: []string{"Anime"}}
	decisions, err := resolver.Resolve(t.Context(), item, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, defaultID, decisions[0].Routing.InstanceID)
}

func TestResolver_RuleRequiresApproval(t *testing.T) {
	resolver, store := newTestResolver(t)
	instID := seedInstance(t, store, "radarr-main", TargetRadarr, true)

	rule := genreRule("horror needs signoff", instID, 60, "horror")
	rule.RequireApproval = true
	require.NoError(t, store.CreateRule(rule))

	item := ContentItem{Title: "Hereditary", Genres: []string{"Horror"}}
	decisions, err := resolver.Resolve(t.Context(), item, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, ActionRequireApproval, d.Action)
	assert.Nil(t, d.Routing)
	require.NotNil(t, d.Approval)
	assert.Equal(t, TriggeredByRule, d.Approval.TriggeredBy)
	assert.Contains(t, d.Approval.Reason, "horror needs signoff")
	// The proposed routing is preserved for replay on approval.
	require.NotNil(t, d.Approval.ProposedRouting)
	assert.Equal(t, instID, d.Approval.ProposedRouting.InstanceID)
	assert.Equal(t, rule.ID, d.Approval.ProposedRouting.RuleID)
}

func TestResolver_ConditionalRule(t *testing.T) {
	resolver, store := newTestResolver(t)
	seedInstance(t, store, "radarr-main", TargetRadarr, true)
	vaultID := seedInstance(t, store, "radarr-vault", TargetRadarr, false)

	rule := &Rule{
		Name:             "old horror to vault",
		Type:             FamilyConditional,
		TargetType:       TargetRadarr,
		TargetInstanceID: vaultID,
		Priority:         70,
		Enabled:          true,
		Criteria: json.RawMessage(`{"condition": {
			"operator": "AND",
			"conditions": [
				{"field": "genre", "operator": "contains", "value": "horror"},
				{"field": "year", "operator": "between", "value": {"min": 1970, "max": 1989}}
			]
		}}`),
	}
	require.NoError(t, store.CreateRule(rule))

	match := ContentItem{
		Title:    "The Shining",
		Genres:   []string{"Horror"},
		Metadata: &ItemMetadata{Year: 1980},
	}
	decisions, err := resolver.Resolve(t.Context(), match, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, vaultID, decisions[0].Routing.InstanceID)

	// A non-matching item falls through to the default instance.
	recent := ContentItem{
		Title:    "Hereditary",
		Genres:   []string{"Horror"},
		Metadata: &ItemMetadata{Year: 2018},
	}
	decisions, err = resolver.Resolve(t.Context(), recent, RoutingContext{ContentType: ContentTypeMovie})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.NotEqual(t, vaultID, decisions[0].Routing.InstanceID)
}
