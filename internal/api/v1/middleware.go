package v1

import "net/http"

// requireEventLog wraps a handler and returns 503 if event persistence is disabled.
func (s *Server) requireEventLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.eventLog == nil {
			writeError(w, http.StatusServiceUnavailable, "NO_EVENT_LOG", "Event log not configured")
			return
		}
		next(w, r)
	}
}

// requireLookups wraps a handler and returns 503 if no metadata provider is configured.
func (s *Server) requireLookups(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.lookups == nil {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Metadata lookups not configured")
			return
		}
		next(w, r)
	}
}
