// Package translate sends recognized label text to a local Ollama server and
// returns the Spanish translation.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/text"
)

const (
	DefaultBaseURL      = "http://localhost:11434"
	DefaultModel        = "mi-traductor-etiquetas:latest"
	DefaultTimeout      = 60 * time.Second
	DefaultProbeTimeout = 5 * time.Second

	generatePath = "/api/generate"
	tagsPath     = "/api/tags"

	maxResponseBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model        string        `mapstructure:"model" yaml:"model" json:"model"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" json:"probe_timeout"`
}

// DefaultConfig returns the configuration for an Ollama server on localhost.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Model:        DefaultModel,
		Timeout:      DefaultTimeout,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("translation base URL cannot be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("translation base URL must start with http:// or https://: %s", c.BaseURL)
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("translation model cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("translation timeout must be positive, got %s", c.Timeout)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.ProbeTimeout)
	}
	return nil
}

// Client talks to one Ollama server. It is safe for concurrent use and holds
// no per-request state.
type Client struct {
	config Config
	http   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for cfg. Zero fields take their defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{config: cfg, http: newHTTPClient(cfg.Timeout)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newHTTPClient applies timeout to connecting, the TLS handshake, waiting
// for the response and the whole exchange.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.config }

// GenerateURL is the endpoint translations are posted to.
func (c *Client) GenerateURL() string { return c.config.BaseURL + generatePath }

// TagsURL is the model listing endpoint used by Ping.
func (c *Client) TagsURL() string { return c.config.BaseURL + tagsPath }

type generateResponse struct {
	Response *string `json:"response"`
}

// Translate translates src, written in the language tag, to Spanish. Only the
// first MaxPromptRunes characters are sent. A single attempt is made; failures
// are *Error values except context cancellation, which returns ctx.Err().
func (c *Client) Translate(ctx context.Context, src string, tag text.LanguageTag) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", &Error{Kind: KindEmptyInput, Language: tag.String()}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := BuildRequest(c.config.Model, src, tag)
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.GenerateURL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("Sending translation request", "endpoint", endpoint, "model", c.config.Model,
		"language", tag, "prompt_runes", len([]rune(req.Prompt)))
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		slog.Warn("Translation service unreachable", "endpoint", endpoint, "error", err)
		return "", &Error{Kind: KindNetwork, Endpoint: endpoint, Language: tag.String(), Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("Error closing response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &Error{Kind: KindNetwork, Endpoint: endpoint, Language: tag.String(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Translation service returned an error", "status", resp.StatusCode, "body", string(body))
		return "", &Error{
			Kind:       KindHTTP,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Language:   tag.String(),
		}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &Error{Kind: KindParse, Endpoint: endpoint, StatusCode: resp.StatusCode,
			Body: string(body), Language: tag.String(), Err: err}
	}
	if out.Response == nil || strings.TrimSpace(*out.Response) == "" {
		return "", &Error{Kind: KindEmptyTranslation, Endpoint: endpoint, StatusCode: resp.StatusCode,
			Language: tag.String()}
	}

	translated := strings.TrimSpace(*out.Response)
	slog.Debug("Translation received", "language", tag, "duration_ms", time.Since(start).Milliseconds(),
		"runes", len([]rune(translated)))
	return translated, nil
}

// Status is the result of a liveness probe.
type Status struct {
	Endpoint   string   `json:"endpoint"`
	Reachable  bool     `json:"reachable"`
	StatusCode int      `json:"status_code,omitempty"`
	Model      string   `json:"model"`
	Models     []string `json:"models,omitempty"`
}

// HasModel reports whether the configured model is installed on the server.
func (s *Status) HasModel() bool {
	for _, m := range s.Models {
		if m == s.Model {
			return true
		}
	}
	return false
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Ping lists the server's models through GET /api/tags within ProbeTimeout.
// Any 2xx response counts as reachable; the model list is parsed best effort.
func (c *Client) Ping(ctx context.Context) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	endpoint := c.TagsURL()
	st := &Status{Endpoint: endpoint, Model: c.config.Model}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return st, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return st, &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("Error closing response body", "error", err)
		}
	}()

	st.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return st, &Error{Kind: KindHTTP, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}
	st.Reachable = true

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		slog.Debug("Could not parse model list", "error", err)
		return st, nil
	}
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			st.Models = append(st.Models, name)
		}
	}
	return st, nil
}
