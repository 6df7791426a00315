package support

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/labelscan/cmd/labelscan/cmd"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

// RegisterCLISteps registers the steps that prepare inputs and run commands.
func (tc *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^a label photo "([^"]*)"$`, tc.aLabelPhoto)
	sc.Step(`^a white-on-black label photo "([^"]*)"$`, tc.aWhiteOnBlackLabelPhoto)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, tc.aFileContaining)
	sc.Step(`^the (latin|han|hangul) recognizer reads "([^"]*)"$`, tc.theRecognizerReads)
	sc.Step(`^the translation server answers "([^"]*)"$`, tc.theTranslationServerAnswers)
	sc.Step(`^the translation server is down$`, tc.theTranslationServerIsDown)
	sc.Step(`^the translation server has the models "([^"]*)"$`, tc.theTranslationServerHasModels)
	sc.Step(`^I run labelscan "([^"]*)"$`, tc.iRunLabelscan)
	sc.Step(`^the command succeeds$`, tc.theCommandSucceeds)
	sc.Step(`^the command fails$`, tc.theCommandFails)
	sc.Step(`^the output contains "([^"]*)"$`, tc.theOutputContains)
	sc.Step(`^the output does not contain "([^"]*)"$`, tc.theOutputDoesNotContain)
	sc.Step(`^the error output contains "([^"]*)"$`, tc.theErrorOutputContains)
	sc.Step(`^the file "([^"]*)" exists$`, tc.theFileExists)
	sc.Step(`^the file "([^"]*)" contains "([^"]*)"$`, tc.theFileContains)
	sc.Step(`^the translation prompt contains "([^"]*)"$`, tc.theTranslationPromptContains)
	sc.Step(`^(\d+) translation requests? (?:was|were) made$`, tc.translationRequestsWereMade)
}

func (tc *TestContext) writeLabel(name string, ink color.Color, value float64) error {
	cfg := testutil.DefaultLabelConfig()
	cfg.Width, cfg.Height, cfg.Scale = 480, 160, 1
	cfg.Ink, cfg.Value = ink, value
	path := tc.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return imaging.Save(testutil.GenerateLabel(cfg), path)
}

func (tc *TestContext) aLabelPhoto(name string) error {
	return tc.writeLabel(name, color.Black, 0.95)
}

func (tc *TestContext) aWhiteOnBlackLabelPhoto(name string) error {
	return tc.writeLabel(name, color.White, 0.05)
}

func (tc *TestContext) aFileContaining(name, content string) error {
	path := tc.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func (tc *TestContext) theRecognizerReads(script, text string) error {
	kind, err := recognizer.ParseScriptKind(script)
	if err != nil {
		return err
	}
	tc.Recognized[kind] = text
	return nil
}

func (tc *TestContext) theTranslationServerAnswers(translation string) error {
	tc.Translation = translation
	tc.StartOllama()
	return nil
}

func (tc *TestContext) theTranslationServerIsDown() error {
	if tc.Ollama != nil {
		tc.Ollama.Close()
		tc.Ollama = nil
	}
	return nil
}

func (tc *TestContext) theTranslationServerHasModels(list string) error {
	tc.Models = strings.Split(list, ",")
	tc.StartOllama()
	return nil
}

func (tc *TestContext) iRunLabelscan(args string) error {
	root := cmd.NewRootCommand(cmd.WithBackendLoader(tc.LoadBackends))
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)

	argv := strings.Fields(args)
	if len(argv) > 0 && (argv[0] == "scan" || argv[0] == "batch" || argv[0] == "check") {
		argv = append(argv, "--translate-url", tc.OllamaURL())
	}
	root.SetArgs(argv)

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(tc.Dir); err != nil {
		return err
	}
	defer func() { _ = os.Chdir(wd) }()

	tc.LastErr = root.ExecuteContext(context.Background())
	tc.Stdout, tc.Stderr = out.String(), errOut.String()
	tc.ExitCode = 0
	if tc.LastErr != nil {
		tc.ExitCode = 1
		tc.Stderr += "Error: " + tc.LastErr.Error() + "\n"
	}
	return nil
}

func (tc *TestContext) theCommandSucceeds() error {
	if tc.LastErr != nil {
		return fmt.Errorf("command failed: %w\nstdout:\n%s\nstderr:\n%s", tc.LastErr, tc.Stdout, tc.Stderr)
	}
	return nil
}

func (tc *TestContext) theCommandFails() error {
	if tc.LastErr == nil {
		return fmt.Errorf("command succeeded, output:\n%s", tc.Stdout)
	}
	return nil
}

func (tc *TestContext) theOutputContains(s string) error {
	if !strings.Contains(tc.Stdout, s) {
		return fmt.Errorf("output does not contain %q:\n%s", s, tc.Stdout)
	}
	return nil
}

func (tc *TestContext) theOutputDoesNotContain(s string) error {
	if strings.Contains(tc.Stdout, s) {
		return fmt.Errorf("output contains %q:\n%s", s, tc.Stdout)
	}
	return nil
}

func (tc *TestContext) theErrorOutputContains(s string) error {
	if !strings.Contains(tc.Stderr, s) {
		return fmt.Errorf("error output does not contain %q:\n%s", s, tc.Stderr)
	}
	return nil
}

func (tc *TestContext) theFileExists(name string) error {
	if _, err := os.Stat(tc.Path(name)); err != nil {
		return fmt.Errorf("expected file %s: %w", name, err)
	}
	return nil
}

func (tc *TestContext) theFileContains(name, s string) error {
	data, err := os.ReadFile(tc.Path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), s) {
		return fmt.Errorf("%s does not contain %q:\n%s", name, s, data)
	}
	return nil
}

func (tc *TestContext) theTranslationPromptContains(s string) error {
	if p := tc.LastPrompt(); !strings.Contains(p, s) {
		return fmt.Errorf("prompt does not contain %q:\n%s", s, p)
	}
	return nil
}

func (tc *TestContext) translationRequestsWereMade(n int) error {
	if got := tc.PromptCount(); got != n {
		return fmt.Errorf("expected %d translation requests, got %d", n, got)
	}
	return nil
}
