package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/server"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

// RegisterServerSteps registers the HTTP API steps.
func (tc *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the API server is running$`, tc.theAPIServerIsRunning)
	sc.Step(`^the API server is running with a limit of (\d+) requests? per minute$`, tc.theAPIServerIsRunningWithLimit)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, tc.iUpload)
	sc.Step(`^I post JSON '([^']*)' to "([^"]*)"$`, tc.iPostJSON)
	sc.Step(`^I request "([^"]*)"$`, tc.iRequest)
	sc.Step(`^the response status is (\d+)$`, tc.theResponseStatusIs)
	sc.Step(`^the JSON field "([^"]*)" is "([^"]*)"$`, tc.theJSONFieldIs)
	sc.Step(`^the JSON field "([^"]*)" is (true|false)$`, tc.theJSONFieldIsBool)
	sc.Step(`^the response contains "([^"]*)"$`, tc.theResponseContains)
	sc.Step(`^the response header "([^"]*)" is "([^"]*)"$`, tc.theResponseHeaderIs)
}

func (tc *TestContext) startServer(rl server.RateLimitConfig) error {
	backends, err := tc.LoadBackends(pipeline.BackendConfig{})
	if err != nil {
		return err
	}
	client := translate.NewClient(translate.Config{BaseURL: tc.OllamaURL()})
	p, err := pipeline.NewBuilder().WithBackends(backends).WithTranslator(client).WithWorkers(2).Build()
	if err != nil {
		return err
	}
	s, err := server.NewServer(server.Config{TimeoutSec: 10, RateLimit: rl}, p, client)
	if err != nil {
		return err
	}
	tc.Server = httptest.NewServer(s.Handler())
	return nil
}

func (tc *TestContext) theAPIServerIsRunning() error {
	return tc.startServer(server.RateLimitConfig{})
}

func (tc *TestContext) theAPIServerIsRunningWithLimit(n int) error {
	return tc.startServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: n})
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.Server.Client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	tc.LastStatus = resp.StatusCode
	tc.LastHeader = resp.Header
	tc.LastBody = readAll(resp.Body)
	return nil
}

func (tc *TestContext) iUpload(name, path string) error {
	if tc.Server == nil {
		return fmt.Errorf("server is not running")
	}
	data, err := os.ReadFile(tc.Path(name))
	if err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, tc.Server.URL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return tc.do(req)
}

func (tc *TestContext) iPostJSON(payload, path string) error {
	if tc.Server == nil {
		return fmt.Errorf("server is not running")
	}
	req, err := http.NewRequest(http.MethodPost, tc.Server.URL+path, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) iRequest(path string) error {
	if tc.Server == nil {
		return fmt.Errorf("server is not running")
	}
	req, err := http.NewRequest(http.MethodGet, tc.Server.URL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) theResponseStatusIs(code int) error {
	if tc.LastStatus != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, tc.LastStatus, tc.LastBody)
	}
	return nil
}

// jsonField resolves a dotted path such as "error.category" in the last body.
func (tc *TestContext) jsonField(path string) (any, error) {
	var v any
	if err := json.Unmarshal(tc.LastBody, &v); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w\n%s", err, tc.LastBody)
	}
	for _, key := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: not an object in %s", key, tc.LastBody)
		}
		if v, ok = m[key]; !ok {
			return nil, fmt.Errorf("field %q missing in %s", path, tc.LastBody)
		}
	}
	return v, nil
}

func (tc *TestContext) theJSONFieldIs(path, want string) error {
	v, err := tc.jsonField(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %q: expected %q, got %q", path, want, got)
	}
	return nil
}

func (tc *TestContext) theJSONFieldIsBool(path, want string) error {
	v, err := tc.jsonField(path)
	if err != nil {
		return err
	}
	b, ok := v.(bool)
	if !ok || fmt.Sprint(b) != want {
		return fmt.Errorf("field %q: expected %s, got %v", path, want, v)
	}
	return nil
}

func (tc *TestContext) theResponseContains(s string) error {
	if !bytes.Contains(tc.LastBody, []byte(s)) {
		return fmt.Errorf("response does not contain %q:\n%s", s, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) theResponseHeaderIs(name, want string) error {
	if got := tc.LastHeader.Get(name); got != want {
		return fmt.Errorf("header %s: expected %q, got %q", name, want, got)
	}
	return nil
}

