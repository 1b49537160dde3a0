package v1

import (
	"encoding/json"
	"net/http"

	"github.com/vmunix/pulsarr/internal/quota"
	"github.com/vmunix/pulsarr/internal/router"
)

// parseContentType validates the content_type query parameter.
func parseContentType(r *http.Request) (router.ContentType, bool) {
	ct := router.ContentType(r.URL.Query().Get("content_type"))
	switch ct {
	case router.ContentTypeMovie, router.ContentTypeShow:
		return ct, true
	}
	return "", false
}

// quotaStatus reports a user's current standing for one content type.
// Users with no configured quota get {"unlimited": true}.
func (s *Server) quotaStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user ID")
		return
	}
	ct, ok := parseContentType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "content_type must be movie or show")
		return
	}

	status, err := s.quotas.GetStatus(r.Context(), userID, ct)
	if err != nil {
		s.logger.Error("quota status failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to get quota status")
		return
	}
	if status == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":      userID,
			"content_type": ct,
			"unlimited":    true,
		})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// upsertQuotaRequest is the body for PUT /api/v1/quotas/{userID}.
type upsertQuotaRequest struct {
	ContentType    router.ContentType `json:"content_type"`
	QuotaType      quota.Type         `json:"quota_type"`
	Limit          int                `json:"quota_limit"`
	BypassApproval bool               `json:"bypass_approval"`
}

func (s *Server) upsertQuota(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user ID")
		return
	}
	var body upsertQuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	switch body.ContentType {
	case router.ContentTypeMovie, router.ContentTypeShow:
	default:
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "content_type must be movie or show")
		return
	}
	switch body.QuotaType {
	case quota.TypeDaily, quota.TypeWeeklyRolling, quota.TypeMonthly:
	default:
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "quota_type must be daily, weekly_rolling, or monthly")
		return
	}
	if body.Limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "quota_limit must not be negative")
		return
	}

	q := &quota.UserQuota{
		UserID:         userID,
		ContentType:    body.ContentType,
		Type:           body.QuotaType,
		Limit:          body.Limit,
		BypassApproval: body.BypassApproval,
	}
	if err := s.quotaStore.UpsertQuota(q); err != nil {
		s.logger.Error("upsert quota failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to save quota")
		return
	}
	s.logger.Info("quota saved", "user_id", userID, "content_type", q.ContentType, "limit", q.Limit)
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) deleteQuota(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid user ID")
		return
	}
	ct, ok := parseContentType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "content_type must be movie or show")
		return
	}
	if err := s.quotaStore.DeleteQuota(userID, ct); err != nil {
		s.logger.Error("delete quota failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to delete quota")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
