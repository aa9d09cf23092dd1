package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/pkg/errors"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "gpt-4.1-mini"
	completionsPath = "/chat/completions"

	// errorBodyLimit caps how much of an upstream error body is read for the
	// error message.
	errorBodyLimit = 4 << 10
)

// Client talks to an OpenAI-compatible chat completions endpoint. Any
// provider exposing that surface works; only the base URL, key and model
// change.
type Client struct {
	url     string
	apiKey  string
	model   string
	retries int
	backoff time.Duration

	// do is swappable so tests can intercept requests.
	do func(*http.Request) (*http.Response, error)
}

// NewClient builds a Client from the analyzer config, filling in endpoint
// and model defaults.
func NewClient(cfg config.AnalyzerConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		url:     strings.TrimRight(base, "/") + completionsPath,
		apiKey:  cfg.APIKey,
		model:   model,
		retries: cfg.MaxRetries,
		backoff: cfg.RetryBackoff,
		do:      hc.Do,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the assistant text.
// Rate limits, 5xx and upstream timeouts are retried with doubling backoff;
// other 4xx and malformed responses fail immediately.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64, wantJSON bool) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
	}
	if wantJSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "encode analyzer request")
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		text, retryable, err := c.once(ctx, body)
		if err == nil {
			return text, nil
		}
		if !retryable || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", errors.Wrap(lastErr, errors.ErrCodeAnalyzerUnavailable, "analyzer backend unreachable after retries")
}

func (c *Client) once(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeInternal, "build analyzer request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, errors.Wrap(err, errors.ErrCodeAnalyzerUnavailable, "analyzer request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, errors.New(errors.ErrCodeAnalyzerUnavailable, "analyzer rate limited")
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5:
		return "", true, errors.Newf(errors.ErrCodeAnalyzerUnavailable,
			"analyzer upstream %d: %s", resp.StatusCode, errorBody(resp.Body))
	case resp.StatusCode/100 != 2:
		return "", false, errors.Newf(errors.ErrCodeAnalyzerBadResponse,
			"analyzer upstream %d: %s", resp.StatusCode, errorBody(resp.Body))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeAnalyzerBadResponse, "decode analyzer response")
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", false, errors.New(errors.ErrCodeAnalyzerBadResponse, "analyzer returned no choices")
	}
	return out.Choices[0].Message.Content, false, nil
}

func errorBody(r io.Reader) string {
	slurp, _ := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	return strings.TrimSpace(string(slurp))
}
