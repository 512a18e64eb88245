package api

import (
	"net/http"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.analyzer.APIVersion()})
}

func (s *Server) handleCheckAPIKey(w http.ResponseWriter, r *http.Request) {
	if s.claude == nil || !s.claude.HasAPIKey() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "ANTHROPIC_API_KEY is not set",
			"details": "set ANTHROPIC_API_KEY in the environment",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API key is configured",
	})
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.claude == nil || s.claude.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.claude.Stats.Report())
}
