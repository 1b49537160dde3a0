package v1

import (
	"encoding/json"
	"net/http"

	"github.com/vmunix/pulsarr/internal/router"
)

// routeRequest is the body for POST /api/v1/route.
type routeRequest struct {
	Item    router.ContentItem    `json:"item"`
	Context router.RoutingContext `json:"context"`
}

// route runs one item through the full pipeline: enrich, resolve, gate.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	if req.Item.Title == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TITLE", "item.title is required")
		return
	}
	switch req.Context.ContentType {
	case router.ContentTypeMovie, router.ContentTypeShow:
	default:
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "context.content_type must be movie or show")
		return
	}

	if s.lookups != nil {
		s.lookups.Enrich(r.Context(), &req.Item, req.Context.ContentType)
	}

	decisions, err := s.resolver.Resolve(r.Context(), req.Item, req.Context)
	if err != nil {
		s.logger.Error("resolve failed", "title", req.Item.Title, "error", err)
		writeError(w, http.StatusInternalServerError, "RESOLVE_ERROR", err.Error())
		return
	}

	result, err := s.gate.Process(r.Context(), req.Item, req.Context, decisions)
	if err != nil {
		if result != nil {
			// Partial routing: some instances were acquired before a
			// failure. Report what happened alongside the error.
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"result": result,
				"error":  err.Error(),
			})
			return
		}
		s.logger.Error("gate failed", "title", req.Item.Title, "error", err)
		writeError(w, http.StatusInternalServerError, "GATE_ERROR", err.Error())
		return
	}

	code := http.StatusOK
	if result.Deferred != nil {
		code = http.StatusAccepted
	}
	writeJSON(w, code, result)
}
