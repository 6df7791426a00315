package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

const englishLabel = "INGREDIENTS WATER SUGAR SALT AND VINEGAR"

// isolate runs the test in an empty directory with no config files in reach.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

// testLoader, when set, replaces the model loader of commands built by
// newRoot.
var testLoader BackendLoader

// useRecognizer makes commands use a Latin recognizer that returns text.
func useRecognizer(t *testing.T, text string) {
	t.Helper()
	testLoader = func(pipeline.BackendConfig) (recognizer.Backends, error) {
		return recognizer.Backends{
			Latin: recognizer.Func(func(context.Context, *conditioner.Conditioned) (string, error) {
				return text, nil
			}),
		}, nil
	}
	t.Cleanup(func() { testLoader = nil })
}

func newRoot() *cobra.Command {
	if testLoader != nil {
		return NewRootCommand(WithBackendLoader(testLoader))
	}
	return NewRootCommand()
}

// fakeOllama answers /api/generate with translation and /api/tags with
// models.
func fakeOllama(t *testing.T, translation string, models ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			_, _ = io.WriteString(w, `{"response":"`+translation+`"}`)
		case "/api/tags":
			body := `{"models":[`
			for i, m := range models {
				if i > 0 {
					body += ","
				}
				body += `{"name":"` + m + `"}`
			}
			_, _ = io.WriteString(w, body+`]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns a base URL nothing listens on.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func writeLabel(t *testing.T, path string) string {
	t.Helper()
	cfg := testutil.DefaultLabelConfig()
	cfg.Width, cfg.Height = 320, 120
	cfg.Scale = 1
	testutil.SaveImage(t, testutil.GenerateLabel(cfg), path)
	return path
}

// run executes labelscan with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
