package server

import (
	"bytes"
	"context"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/MeKo-Tech/labelscan/internal/text"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

const englishLabel = "INGREDIENTS WATER SUGAR SALT AND VINEGAR"

// fakeTranslator answers translations and probes from fixed values.
type fakeTranslator struct {
	mu      sync.Mutex
	out     string
	err     error
	status  *translate.Status
	pingErr error
	texts   []string
	tags    []text.LanguageTag
}

func (f *fakeTranslator) Translate(_ context.Context, src string, tag text.LanguageTag) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, src)
	f.tags = append(f.tags, tag)
	return f.out, f.err
}

func (f *fakeTranslator) Ping(context.Context) (*translate.Status, error) {
	return f.status, f.pingErr
}

func (f *fakeTranslator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func fixedText(s string) recognizer.Func {
	return func(context.Context, *conditioner.Conditioned) (string, error) { return s, nil }
}

// newTestServer builds a server over a pipeline whose Latin recognizer
// returns latin. A nil translator disables translation.
func newTestServer(t *testing.T, cfg Config, latin string, tr *fakeTranslator) *Server {
	t.Helper()
	b := pipeline.NewBuilder().WithBackend(recognizer.Latin, fixedText(latin))
	var svc TranslationService
	if tr != nil {
		b = b.WithTranslator(tr)
		svc = tr
	} else {
		b = b.WithTranslation(false)
	}
	p, err := b.Build()
	require.NoError(t, err)
	s, err := NewServer(cfg, p, svc)
	require.NoError(t, err)
	return s
}

func labelPNG(t *testing.T) []byte {
	t.Helper()
	cfg := testutil.DefaultLabelConfig()
	cfg.Lines = []string{"INGREDIENTS"}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.GenerateLabel(cfg)))
	return buf.Bytes()
}

// scanRequest builds a multipart POST /scan request.
func scanRequest(t *testing.T, field string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "label.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}
