package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers and records request metrics.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next(rw, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	}
}

// rateLimitMiddleware enforces the per-client limits when configured.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}
		if err := s.rateLimiter.CheckRateLimit(getClientIP(r), max(r.ContentLength, 0)); err != nil {
			writeRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

func writeRateLimitError(w http.ResponseWriter, err error) {
	var rle *RateLimitError
	var qe *QuotaExceededError
	switch {
	case errors.As(err, &rle):
		rateLimitHits.WithLabelValues(rle.Type).Inc()
		w.Header().Set("X-RateLimit-Type", rle.Type)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rle.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rle.RetryAfter.Seconds()))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": "rate_limit_exceeded", "type": rle.Type, "limit": rle.Limit,
			"retry_after": rle.RetryAfter.Seconds(), "message": rle.Error(),
		})
	case errors.As(err, &qe):
		rateLimitHits.WithLabelValues(qe.Type).Inc()
		w.Header().Set("X-Quota-Type", qe.Type)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(qe.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(qe.Used, 10))
		w.Header().Set("X-Quota-Resets", qe.Resets.UTC().Format(http.TimeFormat))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": "quota_exceeded", "type": qe.Type, "limit": qe.Limit, "used": qe.Used,
			"resets": qe.Resets.Format(time.RFC3339), "message": qe.Error(),
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal", "rate limiting check failed")
	}
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
