package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_GracefulShutdown(t *testing.T) {
	s := newTestServer(t, Config{MaxConnections: 4, ShutdownTimeout: time.Second,
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 100}}, englishLabel, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test request
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestAddr(t *testing.T) {
	s := newTestServer(t, Config{Host: "0.0.0.0", Port: 8080}, englishLabel, nil)
	assert.Equal(t, "0.0.0.0:8080", s.Addr())
}

func TestListenAndServe_BadAddress(t *testing.T) {
	s := newTestServer(t, Config{Host: "256.256.256.256", Port: 1}, englishLabel, nil)
	err := s.ListenAndServe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
