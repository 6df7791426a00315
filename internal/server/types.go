// Package server exposes the label pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/text"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

// Scanner runs one label photo through the pipeline.
type Scanner interface {
	ProcessObserved(ctx context.Context, img image.Image, obs pipeline.StageObserver) (*pipeline.Result, error)
}

// TranslationService is the part of the translation client the server uses.
type TranslationService interface {
	Translate(ctx context.Context, src string, tag text.LanguageTag) (string, error)
	Ping(ctx context.Context) (*translate.Status, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	config        Config
	scanner       Scanner
	recognizeOnly Scanner
	translator    TranslationService
	rateLimiter   *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	ShutdownTimeout time.Duration
	MaxConnections  int
	RateLimit       RateLimitConfig
}

// RateLimitConfig holds per-client limits; zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// TranslatorHealthResponse is returned by GET /translator/health.
type TranslatorHealthResponse struct {
	Endpoint       string   `json:"endpoint"`
	Reachable      bool     `json:"reachable"`
	Model          string   `json:"model"`
	ModelInstalled bool     `json:"model_installed"`
	Models         []string `json:"models,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// ScanResponse is the JSON body of POST /scan and the websocket result.
type ScanResponse struct {
	RecognizedText string              `json:"recognized_text"`
	Script         string              `json:"script"`
	Accepted       bool                `json:"accepted"`
	Language       text.LanguageTag    `json:"language"`
	TranslatedText string              `json:"translated_text,omitempty"`
	Error          *pipeline.ErrorInfo `json:"error,omitempty"`
	Width          int                 `json:"width"`
	Height         int                 `json:"height"`
	Timing         pipeline.Timing     `json:"timing"`
}

// TranslateRequest is the JSON body of POST /translate. The language is
// always detected from the text.
type TranslateRequest struct {
	Text string `json:"text"`
}

// TranslateResponse is returned by POST /translate.
type TranslateResponse struct {
	Text           string              `json:"text"`
	Language       text.LanguageTag    `json:"language"`
	TranslatedText string              `json:"translated_text,omitempty"`
	Error          *pipeline.ErrorInfo `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// NewServer creates a server around p. The translator may be nil when
// translation is disabled.
func NewServer(config Config, p *pipeline.Pipeline, translator TranslationService) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}
	return newServer(config, p, p.RecognitionOnly(), translator), nil
}

func newServer(config Config, scanner, recognizeOnly Scanner, translator TranslationService) *Server {
	if config.CORSOrigin == "" {
		config.CORSOrigin = "*"
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 25
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 90
	}
	s := &Server{
		config:        config,
		scanner:       scanner,
		recognizeOnly: recognizeOnly,
		translator:    translator,
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s
}

func (s *Server) maxUploadBytes() int64 { return s.config.MaxUploadMB * 1024 * 1024 }

func (s *Server) requestTimeout() time.Duration {
	return time.Duration(s.config.TimeoutSec) * time.Second
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/translator/health", s.corsMiddleware(s.translatorHealthHandler))
	mux.HandleFunc("/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanHandler)))
	mux.HandleFunc("/translate", s.corsMiddleware(s.rateLimitMiddleware(s.translateHandler)))
	mux.HandleFunc("/ws/scan", s.rateLimitMiddleware(s.scanWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
