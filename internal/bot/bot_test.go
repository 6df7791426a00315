package bot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/MeKo-Tech/labelscan/internal/text"
	"github.com/MeKo-Tech/labelscan/internal/translate"
	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// fakeAPI serves queued GetUpdates answers and records sent messages.
type fakeAPI struct {
	mu      sync.Mutex
	batches [][]tgbotapi.Update
	errs    []error
	offsets []int
	sent    []tgbotapi.MessageConfig
	files   map[string]tgbotapi.File
	onEmpty func()
}

func (f *fakeAPI) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, c.Offset)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.batches) == 0 {
		if f.onEmpty != nil {
			f.onEmpty()
		}
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFile(c tgbotapi.FileConfig) (tgbotapi.File, error) {
	file, ok := f.files[c.FileID]
	if !ok {
		return tgbotapi.File{}, errors.New("file not found")
	}
	return file, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakeScanner struct {
	res   *pipeline.Result
	err   error
	calls int
}

func (s *fakeScanner) Process(context.Context, image.Image) (*pipeline.Result, error) {
	s.calls++
	return s.res, s.err
}

type fakeProber struct {
	st  *translate.Status
	err error
}

func (p fakeProber) Ping(context.Context) (*translate.Status, error) { return p.st, p.err }

// fileServer serves a PNG label under /file/bot<token>/photos/label.png.
func fileServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.GenerateLabel(testutil.DefaultLabelConfig())))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/botTOKEN/photos/label.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestBot(t *testing.T, api *fakeAPI, sc Scanner, pr Prober, files *httptest.Server) *Bot {
	t.Helper()
	cfg := Config{Token: "TOKEN", PollTimeout: 1}
	if files != nil {
		cfg.FileEndpoint = files.URL + "/file/bot%s/%s"
	}
	b, err := New(cfg, api, sc, pr)
	require.NoError(t, err)
	b.sleep = func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }
	return b
}

func photoUpdate(id int, fileIDs ...string) tgbotapi.Update {
	sizes := make([]tgbotapi.PhotoSize, 0, len(fileIDs))
	for _, f := range fileIDs {
		sizes = append(sizes, tgbotapi.PhotoSize{FileID: f})
	}
	return tgbotapi.Update{UpdateID: id, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}, Photo: sizes}}
}

func commandUpdate(id int, cmd string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: id, Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 7},
		Text:     cmd,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, &fakeScanner{}, nil)
	require.Error(t, err)
	_, err = New(Config{}, &fakeAPI{}, nil, nil)
	require.Error(t, err)

	b, err := New(Config{}, &fakeAPI{}, &fakeScanner{}, nil)
	require.NoError(t, err)
	assert.Equal(t, tgbotapi.FileEndpoint, b.config.FileEndpoint)
	assert.Equal(t, 60, b.config.PollTimeout)
}

func TestConnect_EmptyToken(t *testing.T) {
	_, err := Connect(Config{})
	require.ErrorContains(t, err, "bot token is empty")
}

func TestHandleUpdate_Photo(t *testing.T) {
	files := fileServer(t)
	api := &fakeAPI{files: map[string]tgbotapi.File{"big": {FileID: "big", FilePath: "photos/label.png"}}}
	sc := &fakeScanner{res: &pipeline.Result{
		RecognizedText: "고추장",
		Language:       text.Korean,
		TranslatedText: "pasta de chile",
	}}
	b := newTestBot(t, api, sc, nil, files)

	b.HandleUpdate(context.Background(), photoUpdate(1, "small", "big"))

	require.Equal(t, 1, sc.calls)
	sent := api.texts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "coreano")
	assert.Contains(t, sent[0], "고추장")
	assert.Contains(t, sent[0], "pasta de chile")
}

func TestHandleUpdate_PhotoDownloadFails(t *testing.T) {
	api := &fakeAPI{files: map[string]tgbotapi.File{}}
	sc := &fakeScanner{}
	b := newTestBot(t, api, sc, nil, fileServer(t))

	b.HandleUpdate(context.Background(), photoUpdate(1, "missing"))
	assert.Zero(t, sc.calls)
	assert.Equal(t, []string{msgProcessing}, api.texts())
}

func TestHandleUpdate_Commands(t *testing.T) {
	api := &fakeAPI{}
	pr := fakeProber{st: &translate.Status{Reachable: true, Model: "m:latest", Models: []string{"m:latest"}}}
	b := newTestBot(t, api, &fakeScanner{}, pr, nil)

	b.HandleUpdate(context.Background(), commandUpdate(1, "/start"))
	b.HandleUpdate(context.Background(), commandUpdate(2, "/health"))
	b.HandleUpdate(context.Background(), commandUpdate(3, "/nope"))
	b.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 4, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}, Text: "hola"}})
	b.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 5})

	sent := api.texts()
	require.Len(t, sent, 4)
	assert.Equal(t, msgHelp, sent[0])
	assert.Contains(t, sent[1], msgHealthOK)
	assert.Contains(t, sent[1], "m:latest")
	assert.Equal(t, msgUnknownCommand, sent[2])
	assert.Equal(t, msgSendPhoto, sent[3])
}

func TestHealthText(t *testing.T) {
	b := newTestBot(t, &fakeAPI{}, &fakeScanner{}, nil, nil)
	assert.Equal(t, msgHealthDisabled, b.healthText(context.Background()))

	b.prober = fakeProber{err: errors.New("connection refused")}
	assert.Contains(t, b.healthText(context.Background()), "connection refused")

	b.prober = fakeProber{st: &translate.Status{Reachable: true, Model: "x"}}
	assert.Contains(t, b.healthText(context.Background()), "ollama pull x")
}

func TestFormatReply(t *testing.T) {
	svc := &pipeline.ErrorInfo{Kind: "network", Category: pipeline.CategoryService, Message: "connection refused"}
	content := &pipeline.ErrorInfo{Kind: "empty_translation", Category: pipeline.CategoryContent, Message: "empty translation"}

	tests := []struct {
		name string
		res  *pipeline.Result
		err  error
		want []string
		not  []string
	}{
		{"internal", nil, &testInternalErr{}, []string{msgProcessing}, nil},
		{"bad image", nil, &utils.ImageError{Operation: "decode", Err: errors.New("bad")}, []string{msgBadImage}, nil},
		{"no text", &pipeline.Result{}, nil, []string{msgNoText}, nil},
		{"service", &pipeline.Result{RecognizedText: "WATER", Language: text.English, TranslationError: svc}, nil,
			[]string{"WATER", "inglés", msgService}, []string{"Traducción:"}},
		{"content", &pipeline.Result{RecognizedText: "WATER", TranslationError: content}, nil,
			[]string{"WATER", "Error en traducción", "empty translation"}, []string{msgService}},
		{"ok", &pipeline.Result{RecognizedText: "水", Language: text.Chinese, TranslatedText: "agua"}, nil,
			[]string{"chino", "agua"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatReply(tt.res, tt.err)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, n := range tt.not {
				assert.NotContains(t, got, n)
			}
		})
	}
}

type testInternalErr struct{}

func (*testInternalErr) Error() string { return "boom" }

func TestFormatReply_Truncates(t *testing.T) {
	long := strings.Repeat("가", 5000)
	got := FormatReply(&pipeline.Result{RecognizedText: long, TranslatedText: long}, nil)
	assert.LessOrEqual(t, len([]rune(got)), MaxMessageRunes)
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abcd", 3))
	assert.Equal(t, "한…", Truncate("한국어", 2))
}

func TestRun_ProcessesUpdatesAndAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{
		errs:    []error{errors.New("Too Many Requests: retry after 2")},
		batches: [][]tgbotapi.Update{{commandUpdate(10, "/help"), commandUpdate(11, "/help")}},
		onEmpty: cancel,
	}
	b := newTestBot(t, api, &fakeScanner{}, nil, nil)

	require.NoError(t, b.Run(ctx))
	assert.Len(t, api.texts(), 2)
	assert.Equal(t, []int{0, 0, 12}, api.offsets)
}

func TestBackoff(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, time.Second, backoff(1, plain))
	assert.Equal(t, 2*time.Second, backoff(2, plain))
	assert.Equal(t, 8*time.Second, backoff(4, plain))
	assert.Equal(t, maxDelay, backoff(10, plain))

	assert.Equal(t, 5*time.Second, backoff(1, errors.New("Too Many Requests: retry after 5")))
	assert.Equal(t, 3*time.Second, backoff(1, errors.New("too many requests")))
	assert.Equal(t, 7*time.Second, backoff(1, &tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}))
}
