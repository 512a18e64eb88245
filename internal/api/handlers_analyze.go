package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/sentree/internal/config"
	"github.com/dgallion1/sentree/internal/syntree"
)

type analyzeRequest struct {
	Sentence string `json:"sentence"`
}

type analyzeNodeRequest struct {
	Text            string       `json:"text"`
	ConstituentType string       `json:"constituent_type"`
	Unit            syntree.Unit `json:"unit"`
}

type promptInfoRequest struct {
	PromptType string `json:"promptType"`
	Text       string `json:"text"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	sentence := normalizeSentence(req.Sentence)
	if sentence == "" {
		jsonError(w, "sentence is required", http.StatusBadRequest)
		return
	}

	nodes, err := s.analyzer.AnalyzeSentence(r.Context(), sentence)
	if err != nil {
		s.writeError(w, "analyze sentence", err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleAnalyzeNode(w http.ResponseWriter, r *http.Request) {
	var req analyzeNodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	nodes, err := s.analyzer.AnalyzeNode(r.Context(), text, req.ConstituentType, req.Unit)
	if err != nil {
		s.writeError(w, "analyze node", err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handlePromptInfo(w http.ResponseWriter, r *http.Request) {
	var req promptInfoRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" || req.PromptType == "" {
		jsonError(w, "text and promptType are required", http.StatusBadRequest)
		return
	}

	info, err := s.analyzer.PromptInfo(req.PromptType, req.Text)
	if err != nil {
		s.writeError(w, "prompt info", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// decode reads a size-limited JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = config.DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
