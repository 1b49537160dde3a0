package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vmunix/pulsarr/internal/approval"
	"github.com/vmunix/pulsarr/internal/events"
)

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	f := approval.Filter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if status := queryString(r, "status"); status != nil {
		st := approval.Status(*status)
		switch st {
		case approval.StatusPending, approval.StatusApproved, approval.StatusRejected, approval.StatusExpired:
			f.Status = &st
		default:
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", "invalid status filter")
			return
		}
	}
	if userID := queryString(r, "user_id"); userID != nil {
		id, err := strconv.ParseInt(*userID, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_USER_ID", "user_id must be an integer")
			return
		}
		f.UserID = &id
	}

	reqs, err := s.approvals.List(r.Context(), f)
	if err != nil {
		s.logger.Error("list approvals failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to list approvals")
		return
	}
	if reqs == nil {
		reqs = []*approval.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) getApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid approval ID")
		return
	}
	req, err := s.approvals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "approval not found")
			return
		}
		s.logger.Error("get approval failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to get approval")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// approvalHistory returns the persisted event trail for one request.
func (s *Server) approvalHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid approval ID")
		return
	}
	if _, err := s.approvals.Get(r.Context(), id); err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "approval not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to get approval")
		return
	}
	history, err := s.eventLog.ForEntity(events.EntityApproval, id)
	if err != nil {
		s.logger.Error("approval history failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(history))
}

// resolveRequest is the body for approve and reject actions.
type resolveRequest struct {
	ApprovedBy string `json:"approved_by,omitempty"`
	RejectedBy string `json:"rejected_by,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (s *Server) approveRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid approval ID")
		return
	}
	var body resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	if body.ApprovedBy == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", "approved_by is required")
		return
	}

	req, err := s.approvals.Approve(r.Context(), id, body.ApprovedBy, body.Notes)
	if err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "approval not found")
			return
		}
		if req != nil {
			// Approved but the replay acquisition failed; the caller can
			// retry the acquisition without re-approving.
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"request": req,
				"error":   err.Error(),
			})
			return
		}
		s.logger.Error("approve failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to approve request")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) rejectRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid approval ID")
		return
	}
	var body resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	if body.RejectedBy == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", "rejected_by is required")
		return
	}

	req, err := s.approvals.Reject(r.Context(), id, body.RejectedBy, body.Notes)
	if err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "approval not found")
			return
		}
		s.logger.Error("reject failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to reject request")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) deleteApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid approval ID")
		return
	}
	if err := s.approvals.Delete(r.Context(), id); err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "approval not found")
			return
		}
		s.logger.Error("delete approval failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to delete approval")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
