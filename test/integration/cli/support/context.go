// Package support holds the step definitions of the labelscan feature tests.
// Scenarios run the command tree and the HTTP server in process, with fake
// recognizers and a fake Ollama server.
package support

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

// TestContext is the state of one scenario.
type TestContext struct {
	Dir string

	// text returned by each script recognizer, "" when the script reads nothing
	Recognized map[recognizer.ScriptKind]string

	// fake Ollama
	Ollama      *httptest.Server
	Translation string
	Models      []string
	mu          sync.Mutex
	Prompts     []string

	// last command
	Stdout   string
	Stderr   string
	LastErr  error
	ExitCode int

	// HTTP server
	Server     *httptest.Server
	LastStatus int
	LastBody   []byte
	LastHeader http.Header
}

// NewTestContext creates the scenario state in a fresh temporary directory.
func NewTestContext() (*TestContext, error) {
	dir, err := os.MkdirTemp("", "labelscan-features-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		Dir:        dir,
		Recognized: map[recognizer.ScriptKind]string{},
		Models:     []string{translate.DefaultModel},
	}, nil
}

// Path resolves name inside the scenario directory.
func (tc *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(tc.Dir, name)
}

// LoadBackends returns fake recognizers answering from Recognized.
func (tc *TestContext) LoadBackends(pipeline.BackendConfig) (recognizer.Backends, error) {
	fake := func(script recognizer.ScriptKind) recognizer.ScriptRecognizer {
		return recognizer.Func(func(ctx context.Context, _ *conditioner.Conditioned) (string, error) {
			return tc.Recognized[script], ctx.Err()
		})
	}
	return recognizer.Backends{
		Latin:  fake(recognizer.Latin),
		Han:    fake(recognizer.Han),
		Hangul: fake(recognizer.Hangul),
	}, nil
}

// StartOllama starts the fake translation server.
func (tc *TestContext) StartOllama() {
	if tc.Ollama != nil {
		return
	}
	tc.Ollama = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			var req translate.Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			tc.mu.Lock()
			tc.Prompts = append(tc.Prompts, req.Prompt)
			tc.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]string{"response": tc.Translation})
		case "/api/tags":
			type model struct {
				Name string `json:"name"`
			}
			var body struct {
				Models []model `json:"models"`
			}
			for _, m := range tc.Models {
				body.Models = append(body.Models, model{Name: m})
			}
			_ = json.NewEncoder(w).Encode(body)
		default:
			http.NotFound(w, r)
		}
	}))
}

// OllamaURL returns the base URL of the fake server, or of a closed port
// when the scenario has the server down.
func (tc *TestContext) OllamaURL() string {
	if tc.Ollama != nil {
		return tc.Ollama.URL
	}
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// LastPrompt returns the most recent translation prompt.
func (tc *TestContext) LastPrompt() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if len(tc.Prompts) == 0 {
		return ""
	}
	return tc.Prompts[len(tc.Prompts)-1]
}

// PromptCount returns the number of translation requests seen.
func (tc *TestContext) PromptCount() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.Prompts)
}

func readAll(r io.Reader) []byte {
	b, _ := io.ReadAll(r)
	return b
}

// Cleanup stops the servers and removes the scenario directory.
func (tc *TestContext) Cleanup() error {
	if tc.Server != nil {
		tc.Server.Close()
	}
	if tc.Ollama != nil {
		tc.Ollama.Close()
	}
	return os.RemoveAll(tc.Dir)
}
