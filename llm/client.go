// Package llm is the OpenAI-compatible completion backend behind every
// optional collaborator: query parsing, card extraction, match scoring,
// explanation and selector discovery. Callers treat any error as "no
// answer" and fall back to their deterministic path.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/use-agent/pricecompare/config"
	"github.com/use-agent/pricecompare/metrics"
	"github.com/use-agent/pricecompare/models"
)

// Client is a lightweight OpenAI-compatible API client.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
	limiter    *Limiter
	metrics    *metrics.Metrics
}

// NewClient creates a client from cfg. Pass a nil httpClient to use one
// with cfg.Timeout; m may be nil.
func NewClient(cfg config.LLMConfig, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		limiter:    NewLimiter(cfg.CallsPerMinute, cfg.MinGap, cfg.MaxConcurrent),
		metrics:    m,
	}
}

// Enabled reports whether completions are attempted at all.
func (c *Client) Enabled() bool { return c != nil && c.cfg.Enabled }

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// completion describes one chat call.
type completion struct {
	op        string
	system    string
	user      string
	fast      bool
	json      bool
	maxTokens int
}

// complete runs one chat completion under the limiter and returns the
// message text.
func (c *Client) complete(ctx context.Context, req completion) (out string, err error) {
	if !c.Enabled() {
		c.metrics.LLMCall(req.op, "disabled")
		return "", models.NewScrapeError(models.ErrCodeLLMDisabled, "LLM collaborators are disabled", nil)
	}
	defer func() { c.metrics.LLMCall(req.op, outcome(err)) }()

	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMRateLimited, "waiting for LLM capacity", err)
	}
	defer release()

	model := c.cfg.PrimaryModel
	if req.fast {
		model = c.cfg.FastModel
	}
	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.system},
			{Role: "user", Content: req.user},
		},
		MaxTokens: req.maxTokens,
	}
	if req.json {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	} else {
		body.Temperature = 0.2
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "failed to read LLM response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// completeJSON runs a JSON-mode completion and decodes it into out.
func (c *Client) completeJSON(ctx context.Context, req completion, out any) error {
	req.json = true
	if req.maxTokens == 0 {
		req.maxTokens = 1024
	}
	raw, err := c.complete(ctx, req)
	if err != nil {
		return err
	}
	if err := decodeJSON(raw, out); err != nil {
		slog.Debug("llm: undecodable reply", "op", req.op, "reply", truncate(raw, 120))
		return models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", err)
	}
	return nil
}

var (
	fenceRe  = regexp.MustCompile("```(?:json)?\\s*")
	objectRe = regexp.MustCompile(`\{[\s\S]+\}`)
)

// decodeJSON accepts a bare object, one wrapped in markdown fences, or
// one embedded in prose.
func decodeJSON(raw string, out any) error {
	clean := strings.TrimRight(strings.TrimSpace(fenceRe.ReplaceAllString(raw, "")), "`")
	err := json.Unmarshal([]byte(clean), out)
	if err == nil {
		return nil
	}
	if m := objectRe.FindString(raw); m != "" {
		return json.Unmarshal([]byte(m), out)
	}
	return err
}

// classifyLLMError maps HTTP status codes to appropriate error codes.
func classifyLLMError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewScrapeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case models.HasCode(err, models.ErrCodeLLMRateLimited):
		return "rate_limited"
	case models.HasCode(err, models.ErrCodeLLMAuthFailure):
		return "auth_failure"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
