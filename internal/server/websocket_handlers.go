package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketScanRequest is the JSON form of a scan request. A binary frame
// carries the encoded image alone and always translates.
type WebSocketScanRequest struct {
	Image     []byte `json:"image"` // base64 in JSON
	Translate *bool  `json:"translate,omitempty"`
}

// WebSocketMessage is every message the server sends.
type WebSocketMessage struct {
	Type      string        `json:"type"` // stage, result, error
	RequestID string        `json:"request_id,omitempty"`
	Stage     string        `json:"stage,omitempty"`
	ElapsedMs int64         `json:"elapsed_ms,omitempty"`
	Result    *ScanResponse `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Kind      string        `json:"kind,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// scanWebSocketHandler streams stage events and the result of each scan
// request received on the connection.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(s.maxUploadBytes() * 2) // base64 JSON is larger than the raw upload
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		s.handleWebSocketMessage(r.Context(), conn, messageType, data)
	}
}

// handleWebSocketMessage runs one scan request and answers on conn.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, messageType int, data []byte) {
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	req := WebSocketScanRequest{Image: data}
	if messageType == websocket.TextMessage {
		req = WebSocketScanRequest{}
		if err := json.Unmarshal(data, &req); err != nil {
			sendWebSocket(conn, WebSocketMessage{Type: "error", RequestID: requestID, Kind: "input", Error: "failed to parse request: " + err.Error()})
			return
		}
	}
	if len(req.Image) == 0 {
		sendWebSocket(conn, WebSocketMessage{Type: "error", RequestID: requestID, Kind: "input", Error: "no image data provided"})
		return
	}
	translate := req.Translate == nil || *req.Translate

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout())
	defer cancel()

	progress := pipeline.StageFunc(func(stage pipeline.Stage, elapsed time.Duration) {
		sendWebSocket(conn, WebSocketMessage{
			Type:      "stage",
			RequestID: requestID,
			Stage:     string(stage),
			ElapsedMs: elapsed.Milliseconds(),
		})
	})

	res, err := s.scan(ctx, "websocket", req.Image, translate, progress)
	if res == nil {
		info := pipeline.DescribeError(err)
		sendWebSocket(conn, WebSocketMessage{Type: "error", RequestID: requestID, Kind: info.Kind, Error: info.Message})
		return
	}
	out := newScanResponse(res)
	sendWebSocket(conn, WebSocketMessage{Type: "result", RequestID: requestID, Result: &out})
}

func sendWebSocket(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// stageMetrics records every stage duration.
var stageMetrics = pipeline.StageFunc(func(stage pipeline.Stage, elapsed time.Duration) {
	stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
})

// multiObserver fans stage events out to the non-nil observers.
func multiObserver(observers ...pipeline.StageObserver) pipeline.StageObserver {
	return pipeline.StageFunc(func(stage pipeline.Stage, elapsed time.Duration) {
		for _, o := range observers {
			if o != nil {
				o.OnStage(stage, elapsed)
			}
		}
	})
}
