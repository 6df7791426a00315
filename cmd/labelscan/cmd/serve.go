package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/MeKo-Tech/labelscan/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start an HTTP server exposing the label pipeline.

Endpoints:
  POST /scan              Scan an uploaded label photo (multipart field "image")
  POST /translate         Translate text: {"text": "...", "language": "ko"}
  GET  /ws/scan           WebSocket scan with per-stage progress events
  GET  /health            Liveness check
  GET  /translator/health Probe the Ollama server
  GET  /metrics           Prometheus metrics

The server shuts down gracefully on SIGINT or SIGTERM.

Examples:
  labelscan serve
  labelscan serve --host 0.0.0.0 --port 3000 --rate-limit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd)
		},
	}
	fs := cmd.Flags()
	fs.StringP("host", "H", "localhost", "server host")
	fs.IntP("port", "p", 8080, "server port")
	fs.String("cors-origin", "*", "CORS allowed origins")
	fs.Int64("max-upload-size", 25, "maximum upload size in MB")
	fs.Int("timeout", 90, "request timeout in seconds")
	fs.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	fs.Int("max-connections", 64, "maximum concurrent connections (0 = unlimited)")
	fs.Bool("rate-limit", false, "enable per-client rate limiting")
	fs.Int("requests-per-minute", 30, "maximum requests per minute per client")
	fs.Int("requests-per-hour", 600, "maximum requests per hour per client")
	fs.String("save-conditioned", "", "directory to save the conditioned images in")
	addRecognizerFlags(fs)
	addTranslationFlags(fs)
	return cmd
}

// serverConfig maps the server section onto server.Config.
func serverConfig(c config.ServerConfig) server.Config {
	return server.Config{
		Host:            c.Host,
		Port:            c.Port,
		CORSOrigin:      c.CORSOrigin,
		MaxUploadMB:     c.MaxUploadMB,
		TimeoutSec:      c.TimeoutSec,
		ShutdownTimeout: time.Duration(c.ShutdownTimeout) * time.Second,
		MaxConnections:  c.MaxConnections,
		RateLimit: server.RateLimitConfig{
			Enabled:           c.RateLimit.Enabled,
			RequestsPerMinute: c.RateLimit.RequestsPerMinute,
			RequestsPerHour:   c.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: c.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     c.RateLimit.MaxDataPerDayMB * 1024 * 1024,
		},
	}
}

func (a *app) runServe(cmd *cobra.Command) error {
	p, client, err := a.buildPipeline()
	if err != nil {
		return err
	}
	defer closePipeline(p)

	var svc server.TranslationService
	if client != nil {
		svc = client
	}
	s, err := server.NewServer(serverConfig(a.cfg.Server), p, svc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	slog.Info("Label server configured", "addr", s.Addr(), "translation", p.TranslationEnabled(),
		"rate_limit", a.cfg.Server.RateLimit.Enabled)
	return s.ListenAndServe(cmd.Context())
}
