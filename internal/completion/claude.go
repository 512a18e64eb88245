package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// SystemPrompt is sent with every request.
const SystemPrompt = "You are a linguistics expert specializing in English grammar and syntax analysis. " +
	"Your task is to analyze sentences and phrases according to their grammatical structure. " +
	"ALWAYS return JSON format exactly as requested, with no additional text or explanation."

const DefaultBaseURL = "https://api.anthropic.com"

// ErrMissingAPIKey is returned before any request when no credential is set.
var ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY is not set")

// ModelConfig carries the generation parameters for one call.
type ModelConfig struct {
	Template    string // template name, used for stats only
	Model       string
	MaxTokens   int
	Temperature float64
}

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	Stats      *LLMStats
}

func NewClaudeClient(apiKey, baseURL string, timeout time.Duration, stats *LLMStats) *ClaudeClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ClaudeClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		Stats: stats,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *anthropicError `json:"error"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HasAPIKey reports whether a credential is configured.
func (c *ClaudeClient) HasAPIKey() bool {
	return c.apiKey != ""
}

// Complete sends prompt and returns the single JSON value embedded in the
// response text. Failures are not retried.
func (c *ClaudeClient) Complete(ctx context.Context, cfg ModelConfig, prompt string) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqBody := anthropicRequest{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		System:      SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Message: "completion request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "read response: " + err.Error()}
	}
	if c.Stats != nil {
		c.Stats.Record(cfg.Template, time.Since(start).Milliseconds())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(respBody),
		}
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrResponseNotParseable, err)
	}
	if apiResp.Error != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: apiResp.Error.Message}
	}
	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrResponseNotParseable)
	}

	return ExtractJSON(apiResp.Content[0].Text)
}

// upstreamMessage pulls error.message out of an error body, falling back to
// a generic message.
func upstreamMessage(body []byte) string {
	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Error != nil && apiResp.Error.Message != "" {
		return apiResp.Error.Message
	}
	return "unknown error"
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}
