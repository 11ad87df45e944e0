// Package remote executes queries against the upstream query service. The
// gateway and the sync coordinator both go through the Executor interface, so
// tests can substitute an in-process fake.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"syncgate/internal/core"
)

// Executor runs one query against the remote store and reports its outcome.
type Executor interface {
	Execute(ctx context.Context, query string) (*core.Result, error)
}

// Config holds configuration for the HTTP executor.
type Config struct {
	// URL is the remote query endpoint.
	URL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds remote requests when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// HTTPExecutor posts queries to a remote query endpoint.
type HTTPExecutor struct {
	url        string
	httpClient *http.Client
}

// NewHTTPExecutor creates an executor for the configured endpoint.
func NewHTTPExecutor(cfg Config) (*HTTPExecutor, error) {
	if cfg.URL == "" {
		return nil, core.NewValidationError("remote URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPExecutor{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type executeRequest struct {
	Query string `json:"query"`
}

// Execute posts the query and decodes the response envelope. A transport or
// HTTP-level failure is returned as a remote error; a decoded envelope is
// returned as-is so callers can inspect its status.
func (e *HTTPExecutor) Execute(ctx context.Context, query string) (*core.Result, error) {
	if query == "" {
		return nil, core.NewValidationError("query is required")
	}

	body, err := json.Marshal(executeRequest{Query: query})
	if err != nil {
		return nil, core.NewRemoteError(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewRemoteError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, core.NewRemoteError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewRemoteError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewRemoteError(fmt.Errorf("remote returned HTTP %d: %s", resp.StatusCode, truncate(payload, 256)))
	}

	return parseEnvelope(payload)
}

// parseEnvelope extracts the status, results, and metrics fields from the
// response body. Missing fields are left zero; callers decide acceptance
// through Result.Accepted.
func parseEnvelope(payload []byte) (*core.Result, error) {
	if !gjson.ValidBytes(payload) {
		return nil, core.NewRemoteError(fmt.Errorf("invalid response body: %s", truncate(payload, 256)))
	}

	parsed := gjson.ParseBytes(payload)
	result := &core.Result{
		Status: parsed.Get("status").String(),
	}
	if results := parsed.Get("results"); results.Exists() {
		result.Results = json.RawMessage(results.Raw)
	}
	if metrics := parsed.Get("metrics"); metrics.Exists() {
		result.Metrics = json.RawMessage(metrics.Raw)
	}
	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
