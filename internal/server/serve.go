package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/netutil"
)

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. At most
// MaxConnections connections are served at once when it is positive.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}
	timeout := s.requestTimeout()
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.rateLimiter != nil {
		go s.pruneLoop(ctx, time.Hour)
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting label server", "addr", ln.Addr().String(), "max_connections", s.config.MaxConnections)
		errc <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("HTTP server shutdown completed")
	return nil
}

func (s *Server) pruneLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.rateLimiter.Prune(); n > 0 {
				slog.Debug("Pruned idle rate limit entries", "count", n)
			}
		}
	}
}
