// Package v1 implements the native REST API.
package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vmunix/pulsarr/internal/approval"
	"github.com/vmunix/pulsarr/internal/events"
	"github.com/vmunix/pulsarr/internal/lookup"
	"github.com/vmunix/pulsarr/internal/quota"
	"github.com/vmunix/pulsarr/internal/router"
)

// Server is the v1 API server.
type Server struct {
	rules      *router.Store
	registry   *router.Registry
	resolver   *router.Resolver
	gate       *approval.Gate
	approvals  *approval.Manager
	quotas     *quota.Tracker
	quotaStore *quota.Store
	lookups    *lookup.Service
	eventLog   *events.EventLog
	version    string
	logger     *slog.Logger
}

// Deps bundles the server's collaborators. Lookups and EventLog are
// optional; handlers degrade when they're absent.
type Deps struct {
	Rules      *router.Store
	Registry   *router.Registry
	Resolver   *router.Resolver
	Gate       *approval.Gate
	Approvals  *approval.Manager
	Quotas     *quota.Tracker
	QuotaStore *quota.Store
	Lookups    *lookup.Service
	EventLog   *events.EventLog
	Version    string
}

// New creates a new v1 API server.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		rules:      deps.Rules,
		registry:   deps.Registry,
		resolver:   deps.Resolver,
		gate:       deps.Gate,
		approvals:  deps.Approvals,
		quotas:     deps.Quotas,
		quotaStore: deps.QuotaStore,
		lookups:    deps.Lookups,
		eventLog:   deps.EventLog,
		version:    deps.Version,
		logger:     logger.With("component", "api"),
	}
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Routing
	mux.HandleFunc("POST /api/v1/route", s.route)

	// Rules
	mux.HandleFunc("GET /api/v1/rules", s.listRules)
	mux.HandleFunc("POST /api/v1/rules", s.createRule)
	mux.HandleFunc("GET /api/v1/rules/{id}", s.getRule)
	mux.HandleFunc("PUT /api/v1/rules/{id}", s.updateRule)
	mux.HandleFunc("DELETE /api/v1/rules/{id}", s.deleteRule)

	// Approvals
	mux.HandleFunc("GET /api/v1/approvals", s.listApprovals)
	mux.HandleFunc("GET /api/v1/approvals/{id}", s.getApproval)
	mux.HandleFunc("GET /api/v1/approvals/{id}/history", s.requireEventLog(s.approvalHistory))
	mux.HandleFunc("POST /api/v1/approvals/{id}/approve", s.approveRequest)
	mux.HandleFunc("POST /api/v1/approvals/{id}/reject", s.rejectRequest)
	mux.HandleFunc("DELETE /api/v1/approvals/{id}", s.deleteApproval)

	// Quotas
	mux.HandleFunc("GET /api/v1/quotas/{userID}", s.quotaStatus)
	mux.HandleFunc("PUT /api/v1/quotas/{userID}", s.upsertQuota)
	mux.HandleFunc("DELETE /api/v1/quotas/{userID}", s.deleteQuota)

	// Metadata
	mux.HandleFunc("GET /api/v1/fields", s.listFields)
	mux.HandleFunc("GET /api/v1/instances", s.listInstances)
	mux.HandleFunc("GET /api/v1/events", s.requireEventLog(s.recentEvents))
	mux.HandleFunc("GET /api/v1/lookup/movie/{tmdbID}", s.requireLookups(s.lookupMovie))
	mux.HandleFunc("GET /api/v1/lookup/series/{tvdbID}", s.requireLookups(s.lookupSeries))

	// System
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// pathID extracts an integer ID from the URL path.
func pathID(r *http.Request, name string) (int64, error) {
	idStr := r.PathValue(name)
	if idStr == "" {
		return 0, fmt.Errorf("missing path parameter: %s", name)
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

// queryString extracts an optional string from query string.
func queryString(r *http.Request, name string) *string {
	val := r.URL.Query().Get(name)
	if val == "" {
		return nil
	}
	return &val
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
