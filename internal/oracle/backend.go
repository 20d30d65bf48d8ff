package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one call to the backing LLM.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// Backend is the pluggable contract to the external LLM. Which provider
// backs it is explicitly out of scope (spec.md Non-goals); the engine only
// depends on this interface.
type Backend interface {
	Complete(ctx context.Context, req Request) (text string, usedTokens int, err error)
}

// HTTPBackend calls an HTTP/JSON completion endpoint. It is the default
// Backend when no other is wired in — a thin, provider-agnostic caller, not
// a vendor SDK, since the teacher's stack and the rest of the retrieval pack
// carry no single LLM client shared across enough repos to justify picking one.
type HTTPBackend struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPBackend builds an HTTPBackend with a bounded-timeout client.
func NewHTTPBackend(endpoint, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type httpCompletionRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

type httpCompletionResponse struct {
	Text       string `json:"text"`
	UsedTokens int    `json:"usedTokens"`
}

// Complete posts the request and decodes a {text, usedTokens} response.
// A 429 status is returned as the rate_limited failure kind and any other
// status of 400 or above as upstream_error.
func (b *HTTPBackend) Complete(ctx context.Context, req Request) (string, int, error) {
	body, err := json.Marshal(httpCompletionRequest{
		Prompt:      req.Prompt,
		System:      req.System,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build oracle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.Client.Do(httpReq)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read oracle response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", 0, &Failure{Kind: RateLimited, Message: string(respBody)}
	}
	if resp.StatusCode >= 500 {
		return "", 0, &Failure{Kind: UpstreamError, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode >= 400 {
		return "", 0, &Failure{Kind: UpstreamError, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)}
	}

	var parsed httpCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, &Failure{Kind: ParseErrorUpstream, Message: err.Error()}
	}

	return parsed.Text, parsed.UsedTokens, nil
}
