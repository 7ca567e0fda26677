package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"InvestRadar/internal/ports"
)

// FailureKind distinguishes why a model request failed so callers can choose
// retry versus abort policy.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureConnection FailureKind = "connection"
	FailureStatus     FailureKind = "status"
)

// RequestError is returned by Complete for transport and status failures.
type RequestError struct {
	Kind   FailureKind
	Model  string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Kind == FailureStatus {
		return fmt.Sprintf("ollama request (%s): status %d: %v", e.Model, e.Status, e.Err)
	}
	return fmt.Sprintf("ollama request (%s): %s: %v", e.Model, e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Client is the shared request/response wrapper around the local inference
// server. Both analysis stages issue independent requests through it; there
// is no caching or batching across calls.
type Client struct {
	baseURL      string
	client       *http.Client
	readyTimeout time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ ports.ModelClient = (*Client)(nil)

// NewClient builds a client for the given base URL (e.g. http://localhost:11434).
func NewClient(baseURL string, requestTimeout, readyTimeout time.Duration, logger *slog.Logger) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Minute
	}
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Minute
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: requestTimeout},
		readyTimeout: readyTimeout,
		pollInterval: 5 * time.Second,
		logger:       logger,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete issues a single /api/generate request and returns the generated
// text. Timeout, connection failure, and non-2xx responses surface as
// distinct RequestError kinds.
func (c *Client) Complete(ctx context.Context, model, prompt string, opts ports.CompletionOptions) (string, error) {
	payload := generateRequest{
		Model:  model,
		Prompt: prompt,
		System: opts.System,
		Stream: false,
	}
	if opts.JSONFormat {
		payload.Format = "json"
	}

	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	payload.Options = options

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &RequestError{Kind: classifyTransport(err), Model: model, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &RequestError{
			Kind:   FailureStatus,
			Model:  model,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(detail))),
		}
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return decoded.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// WaitReady polls /api/tags until every required model is loaded, bounded by
// the configured ready timeout. The backend may still be pulling models when
// a run starts, so transient failures keep polling.
func (c *Client) WaitReady(ctx context.Context, requiredModels []string) error {
	deadline := time.Now().Add(c.readyTimeout)

	var lastErr error
	for {
		missing, err := c.missingModels(ctx, requiredModels)
		if err == nil && len(missing) == 0 {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("models not loaded: %s", strings.Join(missing, ", "))
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("ollama not ready after %s: %w", c.readyTimeout, lastErr)
		}

		c.debug("ollama not ready, retrying", "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) missingModels(ctx context.Context, required []string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RequestError{Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Kind: FailureStatus, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	var decoded tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	loaded := make(map[string]bool, len(decoded.Models))
	for _, m := range decoded.Models {
		loaded[m.Name] = true
	}

	var missing []string
	for _, name := range required {
		if !loaded[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func classifyTransport(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FailureTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureConnection
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
