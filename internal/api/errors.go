package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/sentree/internal/analyzer"
	"github.com/dgallion1/sentree/internal/completion"
	"github.com/dgallion1/sentree/internal/prompts"
)

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// writeError maps an analyzer error onto a status code and error body.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, analyzer.ErrUnsupportedConstituent),
		errors.Is(err, analyzer.ErrUnknownPromptType),
		errors.Is(err, prompts.ErrUnknownKind):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, completion.ErrMissingAPIKey):
		jsonErrorDetails(w, "API key is not configured", "set ANTHROPIC_API_KEY in the environment", http.StatusInternalServerError)
	case errors.Is(err, prompts.ErrConfigurationMissing):
		jsonErrorDetails(w, err.Error(), "check the templates under RESOURCES_DIR", http.StatusInternalServerError)
	case errors.Is(err, completion.ErrResponseNotParseable):
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		if upErr, ok := completion.AsUpstream(err); ok {
			if upErr.Retryable() {
				w.Header().Set("Retry-After", "5")
			}
			writeJSON(w, http.StatusBadGateway, errorBody{
				Error:   upErr.Error(),
				Details: map[string]any{"status": upErr.StatusCode, "message": upErr.Message},
			})
		} else {
			jsonError(w, err.Error(), http.StatusInternalServerError)
		}
	}
	s.log.Error(op+" failed", "error", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, errorBody{Error: msg})
}

func jsonErrorDetails(w http.ResponseWriter, msg string, details any, code int) {
	writeJSON(w, code, errorBody{Error: msg, Details: details})
}
