package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vmunix/pulsarr/internal/router"
)

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.ListRules()
	if err != nil {
		s.logger.Error("list rules failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to list rules")
		return
	}
	if rules == nil {
		rules = []*router.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid rule ID")
		return
	}
	rule, err := s.rules.GetRule(id)
	if err != nil {
		if errors.Is(err, router.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
			return
		}
		s.logger.Error("get rule failed", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to get rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule router.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	if err := s.rules.ValidateRule(&rule, s.registry); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RULE", err.Error())
		return
	}
	if err := s.rules.CreateRule(&rule); err != nil {
		if errors.Is(err, router.ErrDuplicate) {
			writeError(w, http.StatusConflict, "DUPLICATE", "a rule with this name already exists")
			return
		}
		if errors.Is(err, router.ErrConstraint) {
			writeError(w, http.StatusBadRequest, "CONSTRAINT", err.Error())
			return
		}
		s.logger.Error("create rule failed", "name", rule.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to create rule")
		return
	}
	s.logger.Info("rule created", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, &rule)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid rule ID")
		return
	}
	var rule router.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	rule.ID = id
	if err := s.rules.ValidateRule(&rule, s.registry); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RULE", err.Error())
		return
	}
	if err := s.rules.UpdateRule(&rule); err != nil {
		if errors.Is(err, router.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
			return
		}
		if errors.Is(err, router.ErrConstraint) {
			writeError(w, http.StatusBadRequest, "CONSTRAINT", err.Error())
			return
		}
		s.logger.Error("update rule failed", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to update rule")
		return
	}
	updated, err := s.rules.GetRule(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to reload rule")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid rule ID")
		return
	}
	if _, err := s.rules.GetRule(id); err != nil {
		if errors.Is(err, router.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
			return
		}
		s.logger.Error("get rule failed", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to delete rule")
		return
	}
	if err := s.rules.DeleteRule(id); err != nil {
		s.logger.Error("delete rule failed", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to delete rule")
		return
	}
	s.logger.Info("rule deleted", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}
