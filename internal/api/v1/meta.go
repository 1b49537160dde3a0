package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vmunix/pulsarr/internal/events"
	"github.com/vmunix/pulsarr/internal/lookup"
	"github.com/vmunix/pulsarr/internal/router"
)

// listFields exposes rule-authoring metadata: every registered family and
// the condition fields it owns.
func (s *Server) listFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Metadata())
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.rules.ListInstances()
	if err != nil {
		s.logger.Error("list instances failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to list instances")
		return
	}
	if instances == nil {
		instances = []*router.Instance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

// eventResponse shapes a persisted event for API output.
type eventResponse struct {
	ID         int64           `json:"id"`
	EventType  string          `json:"event_type"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func toEventResponses(raw []events.RawEvent) []eventResponse {
	out := make([]eventResponse, 0, len(raw))
	for _, e := range raw {
		out = append(out, eventResponse{
			ID:         e.ID,
			EventType:  e.EventType,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Payload:    json.RawMessage(e.Payload),
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}

func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	recent, err := s.eventLog.Recent(limit)
	if err != nil {
		s.logger.Error("recent events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(recent))
}

// lookupResponse shapes a provider lookup for API output.
type lookupResponse struct {
	Title            string `json:"title"`
	Year             int    `json:"year,omitempty"`
	OriginalLanguage string `json:"original_language,omitempty"`
	Certification    string `json:"certification,omitempty"`
}

func (s *Server) lookupMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tmdbID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid TMDB ID")
		return
	}
	result, err := s.lookups.MovieByTMDBID(r.Context(), id)
	if err != nil {
		if errors.Is(err, lookup.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "movie not found")
			return
		}
		s.logger.Error("movie lookup failed", "tmdb_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "LOOKUP_ERROR", "metadata lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{
		Title:            result.Title,
		Year:             result.Year,
		OriginalLanguage: result.OriginalLanguage,
		Certification:    result.Certification,
	})
}

func (s *Server) lookupSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tvdbID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid TVDB ID")
		return
	}
	result, err := s.lookups.SeriesByTVDBID(r.Context(), id)
	if err != nil {
		if errors.Is(err, lookup.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "series not found")
			return
		}
		s.logger.Error("series lookup failed", "tvdb_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "LOOKUP_ERROR", "metadata lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{
		Title:            result.Title,
		Year:             result.Year,
		OriginalLanguage: result.OriginalLanguage,
		Certification:    result.Certification,
	})
}
