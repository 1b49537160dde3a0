package v1

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	_ "modernc.org/sqlite"

	"github.com/vmunix/pulsarr/internal/approval"
	"github.com/vmunix/pulsarr/internal/approval/mocks"
	"github.com/vmunix/pulsarr/internal/events"
	"github.com/vmunix/pulsarr/internal/migrations"
	"github.com/vmunix/pulsarr/internal/quota"
	"github.com/vmunix/pulsarr/internal/router"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err, "apply schema")
	return db
}

type testEnv struct {
	mux       *http.ServeMux
	srv       *Server
	acquirer  *mocks.MockAcquirer
	rules     *router.Store
	quotas    *quota.Store
	tracker   *quota.Tracker
	approvals *approval.Store
	eventLog  *events.EventLog
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	ctrl := gomock.NewController(t)
	acq := mocks.NewMockAcquirer(ctrl)

	ruleStore := router.NewStore(db)
	quotaStore := quota.NewStore(db)
	tracker := quota.NewTracker(quotaStore, nil)
	registry, _ := router.NewDefaultRegistry(ruleStore, nil, nil)
	resolver := router.NewResolver(registry, ruleStore, nil)
	approvalStore := approval.NewStore(db)
	gate := approval.NewGate(tracker, approvalStore, acq, nil, nil)
	manager := approval.NewManager(approvalStore, tracker, acq, nil, nil)
	eventLog := events.NewEventLog(db)

	srv := New(Deps{
		Rules:      ruleStore,
		Registry:   registry,
		Resolver:   resolver,
		Gate:       gate,
		Approvals:  manager,
		Quotas:     tracker,
		QuotaStore: quotaStore,
		EventLog:   eventLog,
		Version:    "test",
	}, nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	return &testEnv{
		mux:       mux,
		srv:       srv,
		acquirer:  acq,
		rules:     ruleStore,
		quotas:    quotaStore,
		tracker:   tracker,
		approvals: approvalStore,
		eventLog:  eventLog,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func seedInstance(t *testing.T, store *router.Store, name string, typ router.TargetType, isDefault bool) int64 {
	t.Helper()
	inst := &router.Instance{
		Name:           name,
		Type:           typ,
		BaseURL:        "http://localhost:7878",
		APIKey:         "key",
		Enabled:        true,
		Default:        isDefault,
		QualityProfile: "HD-1080p",
		RootFolder:     "/media",
	}
	require.NoError(t, store.UpsertInstance(inst), "seed instance")
	return inst.ID
}

func TestStatus(t *testing.T) {
	env := setupServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/status", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test", resp["version"])
}

func TestRoute_DefaultInstance(t *testing.T) {
	env := setupServer(t)
	id := seedInstance(t, env.rules, "radarr-main", router.TargetRadarr, true)
	env.acquirer.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	w := env.do(t, http.MethodPost, "/api/v1/route", `{
		"item": {"title": "Heat", "guids": ["tmdb:949"]},
		"context": {"content_type": "movie", "user_ids": [7]}
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var result approval.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Routed, 1)
	assert.Equal(t, id, result.Routed[0].InstanceID)
	assert.Equal(t, "HD-1080p", result.Routed[0].QualityProfile)
	assert.Nil(t, result.Deferred)
}

func TestRoute_BadRequests(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/route", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/route", `{"item": {}, "context": {"content_type": "movie"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/route", `{"item": {"title": "Heat"}, "context": {"content_type": "album"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoute_RuleRequiresApproval(t *testing.T) {
	env := setupServer(t)
	id := seedInstance(t, env.rules, "radarr-main", router.TargetRadarr, true)

	rule := &router.Rule{
		Name:             "anime gate",
		Type:             router.FamilyGenre,
		TargetType:       router.TargetRadarr,
		TargetInstanceID: id,
		Priority:         50,
		Enabled:          true,
		Criteria:         json.RawMessage(`{"genre": "anime"}`),
		RequireApproval:  true,
	}
	require.NoError(t, env.rules.CreateRule(rule))

	w := env.do(t, http.MethodPost, "/api/v1/route", `{
		"item": {"title": "Akira", "guids": ["tmdb:149"], "genres": ["anime"]},
		"context": {"content_type": "movie", "user_ids": [7]}
	}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var result approval.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Deferred)
	assert.Equal(t, approval.StatusPending, result.Deferred.Status)
	assert.Equal(t, router.TriggeredByRule, result.Deferred.TriggeredBy)
	assert.Empty(t, result.Routed)
}

func TestRoute_QuotaExceeded(t *testing.T) {
	env := setupServer(t)
	seedInstance(t, env.rules, "radarr-main", router.TargetRadarr, true)

	require.NoError(t, env.quotas.UpsertQuota(&quota.UserQuota{
		UserID: 7, ContentType: router.ContentTypeMovie, Type: quota.TypeDaily, Limit: 1,
	}))
	require.NoError(t, env.tracker.RecordUsage(t.Context(), 7, router.ContentTypeMovie))

	w := env.do(t, http.MethodPost, "/api/v1/route", `{
		"item": {"title": "Heat", "guids": ["tmdb:949"]},
		"context": {"content_type": "movie", "user_ids": [7]}
	}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var result approval.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Deferred)
	assert.Equal(t, router.TriggeredByQuota, result.Deferred.TriggeredBy)
	assert.Contains(t, result.Deferred.ApprovalReason, "quota exceeded")
}

func TestRules_CRUD(t *testing.T) {
	env := setupServer(t)
	id := seedInstance(t, env.rules, "radarr-main", router.TargetRadarr, false)

	body := fmt.Sprintf(`{
		"name": "90s movies",
		"type": "year",
		"target_type": "radarr",
		"target_instance_id": %d,
		"priority": 60,
		"enabled": true,
		"criteria": {"year": {"min": 1990, "max": 1999}}
	}`, id)

	w := env.do(t, http.MethodPost, "/api/v1/rules", body)
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var created router.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "90s movies", created.Name)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/rules/%d", created.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/rules", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var rules []*router.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	assert.Len(t, rules, 1)

	update := fmt.Sprintf(`{
		"name": "90s movies",
		"type": "year",
		"target_type": "radarr",
		"target_instance_id": %d,
		"priority": 80,
		"enabled": false,
		"criteria": {"year": {"min": 1990, "max": 1999}}
	}`, id)
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/rules/%d", created.ID), update)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	var updated router.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 80, updated.Priority)
	assert.False(t, updated.Enabled)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/rules/%d", created.ID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/rules/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRules_ValidationRejected(t *testing.T) {
	env := setupServer(t)
	id := seedInstance(t, env.rules, "radarr-main", router.TargetRadarr, false)

	// Unknown family.
	w := env.do(t, http.MethodPost, "/api/v1/rules", fmt.Sprintf(`{
		"name": "bad",
		"type": "mood",
		"target_type": "radarr",
		"target_instance_id": %d,
		"criteria": {"mood": "tense"}
	}`, id))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing required fields.
	w = env.do(t, http.MethodPost, "/api/v1/rules", `{"name": "bad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Conditional rule with a field no evaluator owns.
	w = env.do(t, http.MethodPost, "/api/v1/rules", fmt.Sprintf(`{
		"name": "bad tree",
		"type": "conditional",
		"target_type": "radarr",
		"target_instance_id": %d,
		"criteria": {"condition": {"field": "mood", "operator": "equals", "value": "tense"}}
	}`, id))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApprovals_Lifecycle(t *testing.T) {
	env := setupServer(t)

	req := &approval.Request{
		UserID:       7,
		ContentType:  router.ContentTypeMovie,
		ContentTitle: "Heat",
		ContentKey:   "tmdb:949",
		ContentGUIDs: []string{"tmdb:949"},
		ProposedDecision: router.RouterDecision{
			Action:  router.ActionRoute,
			Routing: &router.RoutingDecision{InstanceID: 1},
		},
		TriggeredBy: router.TriggeredByQuota,
	}
	require.NoError(t, env.approvals.Create(req))

	w := env.do(t, http.MethodGet, "/api/v1/approvals?status=pending", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var list []*approval.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	// Missing actor is rejected before any state change.
	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%d/approve", req.ID), `{"notes": "ok"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.acquirer.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%d/approve", req.ID),
		`{"approved_by": "admin", "notes": "fine"}`)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	var approved approval.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &approved))
	assert.Equal(t, approval.StatusApproved, approved.Status)
	assert.Equal(t, "admin", approved.ApprovedBy)

	// Approving again is a no-op; the acquirer must not be called twice.
	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%d/approve", req.ID),
		`{"approved_by": "admin2"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/approvals/%d", req.ID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/approvals/%d", req.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovals_Reject(t *testing.T) {
	env := setupServer(t)

	req := &approval.Request{
		UserID:       3,
		ContentType:  router.ContentTypeShow,
		ContentTitle: "The Wire",
		ContentKey:   "tvdb:79126",
		ContentGUIDs: []string{"tvdb:79126"},
		ProposedDecision: router.RouterDecision{
			Action:  router.ActionRoute,
			Routing: &router.RoutingDecision{InstanceID: 1},
		},
		TriggeredBy: router.TriggeredByRule,
	}
	require.NoError(t, env.approvals.Create(req))

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%d/reject", req.ID),
		`{"rejected_by": "admin", "notes": "not now"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var rejected approval.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rejected))
	assert.Equal(t, approval.StatusRejected, rejected.Status)
	assert.Equal(t, "not now", rejected.ApprovalNotes)
}

func TestApprovals_NotFound(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/approvals/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/approvals/999/approve", `{"approved_by": "admin"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovals_InvalidStatusFilter(t *testing.T) {
	env := setupServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/approvals?status=stuck", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApprovals_InvalidUserFilter(t *testing.T) {
	env := setupServer(t)

	// A non-numeric user_id is a client error, not a filter on user 0.
	w := env.do(t, http.MethodGet, "/api/v1/approvals?user_id=alice", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_USER_ID")
}

func TestQuotas_Endpoints(t *testing.T) {
	env := setupServer(t)

	// No quota configured means unlimited.
	w := env.do(t, http.MethodGet, "/api/v1/quotas/7?content_type=movie", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var unlimited map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unlimited))
	assert.Equal(t, true, unlimited["unlimited"])

	w = env.do(t, http.MethodPut, "/api/v1/quotas/7",
		`{"content_type": "movie", "quota_type": "daily", "quota_limit": 2}`)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/quotas/7?content_type=movie", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var status quota.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 2, status.Limit)
	assert.Zero(t, status.CurrentUsage)
	assert.False(t, status.Exceeded)

	w = env.do(t, http.MethodDelete, "/api/v1/quotas/7?content_type=movie", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/quotas/7?content_type=movie", "")
	var again map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, true, again["unlimited"])
}

func TestQuotas_BadRequests(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/quotas/7", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing content_type")

	w = env.do(t, http.MethodPut, "/api/v1/quotas/7",
		`{"content_type": "movie", "quota_type": "hourly", "quota_limit": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "bad quota_type")

	w = env.do(t, http.MethodPut, "/api/v1/quotas/7",
		`{"content_type": "movie", "quota_type": "daily", "quota_limit": -1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "negative limit")
}

func TestFields(t *testing.T) {
	env := setupServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/fields", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var meta []router.EvaluatorMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	require.Len(t, meta, 6)
	// Descending priority: conditional composes the others and comes first.
	assert.Equal(t, router.FamilyConditional, meta[0].Name)
}

func TestInstances(t *testing.T) {
	env := setupServer(t)
	seedInstance(t, env.rules, "radarr-main", router.TargetRadarr, true)
	seedInstance(t, env.rules, "sonarr-main", router.TargetSonarr, true)

	w := env.do(t, http.MethodGet, "/api/v1/instances", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var instances []*router.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instances))
	assert.Len(t, instances, 2)
	// API keys never leave the server.
	assert.NotContains(t, w.Body.String(), `"key"`)
}

func TestEvents_Recent(t *testing.T) {
	env := setupServer(t)
	_, err := env.eventLog.Append(events.NewContentRouted("Heat", 1, 7, false))
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/events", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var recent []eventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, events.EventContentRouted, recent[0].EventType)
}

func TestApprovalHistory(t *testing.T) {
	env := setupServer(t)

	req := &approval.Request{
		UserID:       7,
		ContentType:  router.ContentTypeMovie,
		ContentTitle: "Heat",
		ContentKey:   "tmdb:949",
		ContentGUIDs: []string{"tmdb:949"},
		ProposedDecision: router.RouterDecision{
			Action:  router.ActionRoute,
			Routing: &router.RoutingDecision{InstanceID: 1},
		},
		TriggeredBy: router.TriggeredByQuota,
	}
	require.NoError(t, env.approvals.Create(req))
	_, err := env.eventLog.Append(events.NewApprovalCreated(req.ID, 7, "Heat", "quota_exceeded", "daily quota exceeded (1/1)"))
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/approvals/%d/history", req.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	var history []eventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, events.EventApprovalCreated, history[0].EventType)

	w = env.do(t, http.MethodGet, "/api/v1/approvals/999/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventLogDisabled(t *testing.T) {
	env := setupServer(t)
	env.srv.eventLog = nil

	w := env.do(t, http.MethodGet, "/api/v1/events", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLookupsNotConfigured(t *testing.T) {
	env := setupServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/lookup/movie/949", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
