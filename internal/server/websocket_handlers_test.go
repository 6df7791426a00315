package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

func dialScan(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scan"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntilFinal collects messages up to the first result or error.
func readUntilFinal(t *testing.T, conn *websocket.Conn) []WebSocketMessage {
	t.Helper()
	var msgs []WebSocketMessage
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var m WebSocketMessage
		require.NoError(t, json.Unmarshal(data, &m))
		msgs = append(msgs, m)
		if m.Type != "stage" {
			return msgs
		}
	}
}

func TestWebSocketScan_BinaryFrame(t *testing.T) {
	s := newTestServer(t, Config{}, englishLabel, &fakeTranslator{out: "hola"})
	conn := dialScan(t, s)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, labelPNG(t)))
	msgs := readUntilFinal(t, conn)

	var stages []string
	for _, m := range msgs[:len(msgs)-1] {
		stages = append(stages, m.Stage)
	}
	want := make([]string, 0, len(pipeline.Stages()))
	for _, st := range pipeline.Stages() {
		want = append(want, string(st))
	}
	assert.Equal(t, want, stages)

	final := msgs[len(msgs)-1]
	require.Equal(t, "result", final.Type)
	require.NotNil(t, final.Result)
	assert.Equal(t, englishLabel, final.Result.RecognizedText)
	assert.Equal(t, "hola", final.Result.TranslatedText)
	assert.Equal(t, msgs[0].RequestID, final.RequestID)
}

func TestWebSocketScan_JSONWithoutTranslation(t *testing.T) {
	tr := &fakeTranslator{out: "hola"}
	s := newTestServer(t, Config{}, englishLabel, tr)
	conn := dialScan(t, s)

	off := false
	req, err := json.Marshal(WebSocketScanRequest{Image: labelPNG(t), Translate: &off})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))

	msgs := readUntilFinal(t, conn)
	final := msgs[len(msgs)-1]
	require.Equal(t, "result", final.Type)
	assert.Empty(t, final.Result.TranslatedText)
	assert.Zero(t, tr.calls())
	for _, m := range msgs[:len(msgs)-1] {
		assert.NotEqual(t, string(pipeline.StageTranslate), m.Stage)
	}
}

func TestWebSocketScan_Errors(t *testing.T) {
	s := newTestServer(t, Config{}, englishLabel, nil)
	conn := dialScan(t, s)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msgs := readUntilFinal(t, conn)
	assert.Equal(t, "error", msgs[0].Type)
	assert.Equal(t, "input", msgs[0].Kind)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	msgs = readUntilFinal(t, conn)
	assert.Contains(t, msgs[0].Error, "no image data")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("garbage")))
	msgs = readUntilFinal(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, "decode", msgs[0].Kind)
}

type recordingConn struct{ frames [][]byte }

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.frames = append(c.frames, data)
	return nil
}

func TestSendWebSocket(t *testing.T) {
	c := &recordingConn{}
	sendWebSocket(c, WebSocketMessage{Type: "stage", Stage: "condition", ElapsedMs: 12})
	require.Len(t, c.frames, 1)
	assert.JSONEq(t, `{"type":"stage","stage":"condition","elapsed_ms":12}`, string(c.frames[0]))
}
