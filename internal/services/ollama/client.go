package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"llmclass/internal/logging"
	"llmclass/internal/retry"
	"llmclass/internal/services"
)

const (
	// DefaultURL is the address Ollama listens on out of the box.
	DefaultURL = "http://localhost:11434"
	// DefaultModel is the vision model used when none is configured.
	DefaultModel = "gemma3:27b-it-qat"

	defaultGenerateTimeout = 120 * time.Second
	defaultProbeTimeout    = 10 * time.Second
)

// Config captures the server address and model used for generation.
type Config struct {
	URL            string
	Model          string
	TimeoutSeconds int
}

// Client wraps the Ollama HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the retry policy. The Retryable classifier is
// forced to retry.RetryServerErrors when unset.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger sets the logger used for attempt reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs an Ollama client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultGenerateTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			URL:            strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.URL == "" {
		client.cfg.URL = DefaultURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = DefaultModel
	}
	if client.policy.Retryable == nil {
		client.policy.Retryable = retry.RetryServerErrors
	}
	client.logger = logging.NewComponentLogger(client.logger, "ollama")
	return client
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// URL returns the configured server address.
func (c *Client) URL() string {
	return c.cfg.URL
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate sends the prompt and images to the configured model and returns
// the trimmed response text. A blank response is a malformed-response
// failure and is not retried. The Outcome is always definite.
func (c *Client) Generate(ctx context.Context, prompt string, images ...string) retry.Outcome[string] {
	req := GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Images: images,
		Stream: false,
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return retry.Outcome[string]{Err: fmt.Errorf("ollama generate: encode body: %w", err)}
	}
	endpoint, err := url.JoinPath(c.cfg.URL, "api", "generate")
	if err != nil {
		return retry.Outcome[string]{Err: services.Wrap(services.ErrConfiguration, "ollama", "generate", "build url", err)}
	}

	return retry.Do(ctx, c.policy, logging.WithContext(ctx, c.logger), "ollama generate", func(ctx context.Context, attempt int) (string, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return "", fmt.Errorf("ollama generate: new request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return "", services.Wrap(services.ErrBackend, "ollama", "generate", "", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", services.Wrap(services.ErrBackend, "ollama", "generate", "read body", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", services.Wrap(services.ErrBackend, "ollama", "generate", "", retry.NewStatusError(resp, body))
		}
		var parsed generateResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", services.Wrap(services.ErrMalformedResponse, "ollama", "generate", "decode response", err)
		}
		if msg := strings.TrimSpace(parsed.Error); msg != "" {
			return "", services.Wrap(services.ErrBackend, "ollama", "generate", msg, nil)
		}
		text := strings.TrimSpace(parsed.Response)
		if text == "" {
			return "", services.Wrap(services.ErrMalformedResponse, "ollama", "generate", "empty response", nil)
		}
		return text, nil
	})
}

// Model describes an installed model as reported by /api/tags.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Digest     string    `json:"digest"`
}

// ListModels returns the installed models. It makes a single attempt with a
// short timeout so it can serve as a liveness probe.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	endpoint, err := url.JoinPath(c.cfg.URL, "api", "tags")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ollama", "list models", "build url", err)
	}
	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ollama list models: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrBackend, "ollama", "list models", "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrBackend, "ollama", "list models", "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrBackend, "ollama", "list models", "", retry.NewStatusError(resp, body))
	}
	var parsed struct {
		Models []Model `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, "ollama", "list models", "decode response", err)
	}
	return parsed.Models, nil
}

// ModelNames extracts the names from models, preserving order.
func ModelNames(models []Model) []string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names
}

// HasModel probes the server and reports whether the configured model is
// installed along with every installed model name.
func (c *Client) HasModel(ctx context.Context) (bool, []string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, nil, err
	}
	names := ModelNames(models)
	return slices.Contains(names, c.cfg.Model), names, nil
}
