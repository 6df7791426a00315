package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// scansTotal counts pipeline runs by result: ok, no_text, service,
	// content, input, cancelled, internal.
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_scans_total",
			Help: "Total number of label scans",
		},
		[]string{"transport", "result"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelscan_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	recognizedScripts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_recognized_script_total",
			Help: "Scans by script family of the final recognizer and language tag",
		},
		[]string{"script", "language"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labelscan_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 512 * 1024, 1024 * 1024, 4 * 1024 * 1024, 10 * 1024 * 1024, 25 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labelscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"},
	)
)
