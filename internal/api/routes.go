package api

import (
	"encoding/json"
	"net/http"

	"github.com/sqriak/sqriak/internal/statistics"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *APIServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleConfig reports the active snapshot. The API secret never leaves
// the process.
func (s *APIServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.holder.Load())
}

func (s *APIServer) redirects() []statistics.RedirectRecord {
	if s.recorder == nil {
		return []statistics.RedirectRecord{}
	}
	return s.recorder.RedirectRecordList.Records()
}

func (s *APIServer) clients() []statistics.ClientRecord {
	if s.recorder == nil {
		return []statistics.ClientRecord{}
	}
	return s.recorder.ClientRecordList.Records()
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"redirects": s.redirects(),
		"clients":   s.clients(),
	})
}

func (s *APIServer) handleRedirectStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.redirects())
}

func (s *APIServer) handleClientStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.clients())
}
