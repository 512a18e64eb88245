package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/sentree/internal/analyzer"
	"github.com/dgallion1/sentree/internal/cache"
	"github.com/dgallion1/sentree/internal/completion"
	"github.com/dgallion1/sentree/internal/config"
	"github.com/dgallion1/sentree/internal/metrics"
	"github.com/dgallion1/sentree/internal/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream fakes the Anthropic Messages API.
type upstream struct {
	mu      sync.Mutex
	status  int
	reply   string
	hits    int
	prompts []string
	block   chan struct{} // when set, requests wait for it to close
	started chan struct{}
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	u.mu.Lock()
	u.hits++
	if len(req.Messages) > 0 {
		u.prompts = append(u.prompts, req.Messages[0].Content)
	}
	status, reply, block, started := u.status, u.reply, u.block, u.started
	u.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]string{"type": "api_error", "message": reply},
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"content": []map[string]string{{"type": "text", "text": reply}},
	})
}

func (u *upstream) setStatus(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
}

// holdRequests makes requests wait until the returned release func is called.
// started receives once per request that reaches the upstream.
func (u *upstream) holdRequests() (started <-chan struct{}, release func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	block := make(chan struct{})
	u.block = block
	u.started = make(chan struct{}, 1)
	return u.started, func() { close(block) }
}

func (u *upstream) Prompts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.prompts...)
}

func (u *upstream) Hits() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits
}

type testEnv struct {
	server   *Server
	upstream *upstream
	cacheDir string
}

type envOption func(*config.Config, *string)

func withAuth(key string) envOption {
	return func(c *config.Config, _ *string) { c.APIKey = key }
}

func withoutAnthropicKey() envOption {
	return func(_ *config.Config, key *string) { *key = "" }
}

func newTestEnv(t *testing.T, reply string, opts ...envOption) *testEnv {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	up := &upstream{reply: reply}
	upSrv := httptest.NewServer(up)
	t.Cleanup(upSrv.Close)

	cfg := config.Config{MaxBodyBytes: config.DefaultMaxBodyBytes}
	anthropicKey := "test-key"
	for _, opt := range opts {
		opt(&cfg, &anthropicKey)
	}

	store, err := prompts.Load(filepath.Join("..", "..", "resources"), log)
	require.NoError(t, err)

	dir := t.TempDir()
	fs, err := cache.NewFileStore(dir)
	require.NoError(t, err)

	m := metrics.New()
	claude := completion.NewClaudeClient(anthropicKey, upSrv.URL, 5*time.Second, completion.NewLLMStats(time.Hour))
	a := analyzer.New(store, prompts.NewComposer(store, "claude-test", log), claude, fs, m, log)

	return &testEnv{
		server:   NewServer(a, fs, claude, m, log, cfg),
		upstream: up,
		cacheDir: dir,
	}
}

func (e *testEnv) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const catReply = `[{"label": "Main Clause", "unit": "Clause", "constituent_type": "Independent Clause", "text": "The cat sat on the mat.", "children": []}]`

const phraseReply = "```json\n" + `[
  {"text": "on", "label": "Preposition", "unit": "Word"},
  {"text": "the mat", "label": "Object", "unit": "Phrase", "constituent_type": "Noun Phrase"}
]` + "\n```"

func TestHealth(t *testing.T) {
	env := newTestEnv(t, catReply)
	rec := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, catReply)

	rec := env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "  The cat sat on the mat.  "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	nodes := decodeBody[[]map[string]any](t, rec)
	require.Len(t, nodes, 1)
	assert.Equal(t, "0-0", nodes[0]["id"])
	assert.Equal(t, "Main Clause", nodes[0]["label"])
	assert.Equal(t, []any{}, nodes[0]["children"])
	sent := env.upstream.Prompts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "The cat sat on the mat.")

	// Second request is served from the cache.
	rec = env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "The cat sat on the mat."})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.upstream.Hits())
}

func TestAnalyze_StripsMarkup(t *testing.T) {
	env := newTestEnv(t, catReply)

	rec := env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "<p>The cat &amp;\n the   dog.</p>"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := env.upstream.Prompts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "The cat & the dog.")
	assert.NotContains(t, sent[0], "<p>")
}

func TestAnalyze_KeepsLessThanInProse(t *testing.T) {
	env := newTestEnv(t, catReply)
	sentence := "Compare a<b and c."

	rec := env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": sentence})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := env.upstream.Prompts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], sentence)
	assert.FileExists(t, filepath.Join(env.cacheDir, cache.Key(sentence), "sentence.json"))
	assert.NoDirExists(t, filepath.Join(env.cacheDir, cache.Key("Compare a")))
}

func TestAnalyze_BadRequests(t *testing.T) {
	env := newTestEnv(t, catReply)

	tests := []struct {
		name string
		body any
	}{
		{"empty sentence", map[string]string{"sentence": "   "}},
		{"missing sentence", map[string]string{}},
		{"invalid json", "{not json"},
		{"oversized body", map[string]string{"sentence": strings.Repeat("a", config.DefaultMaxBodyBytes+1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/analyze", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeBody[errorBody](t, rec).Error)
		})
	}
	assert.Zero(t, env.upstream.Hits())
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, "Overloaded")
	env.upstream.setStatus(529)

	rec := env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "The cat sat."})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	var body struct {
		Error   string `json:"error"`
		Details struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 529, body.Details.Status)
	assert.Equal(t, "Overloaded", body.Details.Message)
}

func TestAnalyze_UpstreamClientError(t *testing.T) {
	env := newTestEnv(t, "prompt is too long")
	env.upstream.setStatus(http.StatusBadRequest)

	rec := env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "The cat sat."})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestAnalyze_NotParseable(t *testing.T) {
	env := newTestEnv(t, "I cannot help with that.")

	rec := env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "The cat sat."})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Error, "not parseable")
}

func TestAnalyze_MissingAnthropicKey(t *testing.T) {
	env := newTestEnv(t, catReply, withoutAnthropicKey())

	rec := env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "The cat sat."})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API key is not configured", decodeBody[errorBody](t, rec).Error)
	assert.Zero(t, env.upstream.Hits())
}

func TestAnalyzeNode(t *testing.T) {
	env := newTestEnv(t, phraseReply)

	rec := env.do(http.MethodPost, "/api/analyze-node", map[string]string{
		"text":             "on the mat",
		"constituent_type": "Prepositional Phrase",
		"unit":             "Phrase",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	nodes := decodeBody[[]map[string]any](t, rec)
	require.Len(t, nodes, 2)
	assert.Equal(t, "on", nodes[0]["text"])
	assert.Equal(t, "Noun Phrase", nodes[1]["constituent_type"])
	assert.NotContains(t, nodes[0], "id")
	sent := env.upstream.Prompts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Phrase: on the mat")
	assert.Contains(t, sent[0], "Prepositional Phrase")
}

func TestAnalyzeNode_Unsupported(t *testing.T) {
	env := newTestEnv(t, phraseReply)

	for _, body := range []map[string]string{
		{"text": "The cat", "constituent_type": "Subject", "unit": "Clause"},
		{"text": "cat", "constituent_type": "Noun", "unit": "Word"},
	} {
		rec := env.do(http.MethodPost, "/api/analyze-node", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody[errorBody](t, rec).Error, "unsupported constituent")
	}
	assert.Zero(t, env.upstream.Hits())
}

func TestAnalyze_RefusesConcurrentRequest(t *testing.T) {
	env := newTestEnv(t, catReply)
	started, release := env.upstream.holdRequests()

	var wg sync.WaitGroup
	var first *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "The cat sat on the mat."})
	}()
	<-started

	busy := env.do(http.MethodPost, "/api/analyze-node", map[string]string{
		"text": "on the mat", "constituent_type": "Prepositional Phrase", "unit": "Phrase",
	})
	assert.Equal(t, http.StatusTooManyRequests, busy.Code)
	assert.Equal(t, "another analysis is in progress", decodeBody[errorBody](t, busy).Error)

	// Non-analysis endpoints stay available.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/version", nil).Code)

	release()
	wg.Wait()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, 1, env.upstream.Hits())

	metricsRec := env.do(http.MethodGet, "/metrics", nil)
	assert.Contains(t, metricsRec.Body.String(), "sentree_busy_rejections_total 1")
}

func TestPromptInfo(t *testing.T) {
	env := newTestEnv(t, catReply)

	rec := env.do(http.MethodPost, "/api/prompt-info", map[string]string{"promptType": "verb", "text": "sat on the mat"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	info := decodeBody[analyzer.PromptInfo](t, rec)
	assert.Equal(t, "Verb Phrase", info.Type)
	assert.Equal(t, "analyzeVerbPhraseSpecific", info.TemplateUsed)
	assert.Contains(t, info.Prompt, "sat on the mat")
	assert.NotEmpty(t, info.Model)

	rec = env.do(http.MethodPost, "/api/prompt-info", map[string]string{"promptType": "bogus", "text": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/prompt-info", map[string]string{"promptType": "verb"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, env.upstream.Hits())
}

func TestCacheListAndClear(t *testing.T) {
	env := newTestEnv(t, catReply)
	sentence := map[string]string{"sentence": "The cat sat on the mat."}

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/analyze", sentence).Code)

	rec := env.do(http.MethodGet, "/api/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Entries []cache.Metadata `json:"entries"`
	}](t, rec)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "The cat sat on the mat.", list.Entries[0].Sentence)
	require.Len(t, list.Entries[0].Components, 1)
	assert.Equal(t, "Independent Clause", list.Entries[0].Components[0].Type)

	rec = env.do(http.MethodPost, "/api/clear-cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true, "message": "cache cleared"}`, rec.Body.String())

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/analyze", sentence).Code)
	assert.Equal(t, 2, env.upstream.Hits())
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, catReply)
	nodes := []map[string]any{{
		"id": "0-0", "text": "The cat sat.", "label": "Main Clause", "unit": "Clause",
		"children": []map[string]any{{"text": "The cat", "label": "Subject", "unit": "Phrase", "constituent_type": "Noun Phrase"}},
	}}

	rec := env.do(http.MethodPost, "/api/export", map[string]any{"title": "Cats", "nodes": nodes})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "  - **Subject** (Phrase, Noun Phrase): The cat")

	rec = env.do(http.MethodPost, "/api/export", map[string]any{"format": "html", "nodes": nodes})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>Main Clause</strong>")

	rec = env.do(http.MethodPost, "/api/export", map[string]any{"format": "pdf", "nodes": nodes})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/export", map[string]any{"nodes": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetaEndpoints(t *testing.T) {
	env := newTestEnv(t, catReply)

	rec := env.do(http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version": "1.0.0"}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/check-api-key", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/analyze", map[string]string{"sentence": "The cat sat."}).Code)
	rec = env.do(http.MethodGet, "/api/stats/llm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[completion.StatsReport](t, rec)
	assert.Equal(t, 1, report.Overall.Count)
	assert.Equal(t, 1, report.ByTemplate[prompts.ClauseTemplate].Count)
}

func TestCheckAPIKey_Missing(t *testing.T) {
	env := newTestEnv(t, catReply, withoutAnthropicKey())

	rec := env.do(http.MethodGet, "/api/check-api-key", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decodeBody[map[string]string](t, rec)["status"])
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, catReply, withAuth("secret"))

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/version", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/version", nil, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/version", nil, "Authorization", "Bearer secret").Code)

	// Health stays open.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", nil).Code)
}
