package api

import (
	"net/http"
)

// handleListCache lists the cached sentences with their metadata.
func (s *Server) handleListCache(w http.ResponseWriter, r *http.Request) {
	entries, err := s.entries.List()
	if err != nil {
		jsonError(w, "failed to list cache: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleClearCache removes every cached result.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.analyzer.ClearCache(); err != nil {
		s.log.Error("clear cache failed", "error", err)
		jsonError(w, "failed to clear cache: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "cache cleared",
	})
}
