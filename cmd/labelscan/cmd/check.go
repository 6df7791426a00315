package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/models"
	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

func newCheckCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the recognition models and the translation server",
		Long: `Check that the recognition models are installed and that the Ollama server
answers and has the translation model.

Examples:
  labelscan check
  labelscan check --skip-models --translate-url http://gpu-box:11434`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck(cmd)
		},
	}
	cmd.Flags().Bool("skip-models", false, "only check the translation server")
	addRecognizerFlags(cmd.Flags())
	addTranslationFlags(cmd.Flags())
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	skipModels, _ := cmd.Flags().GetBool("skip-models")

	problems := 0
	if !skipModels {
		problems += a.checkRecognizers(out)
	}
	problems += a.checkTranslation(cmd, out)

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	_, _ = fmt.Fprintln(out, "All checks passed.")
	return nil
}

func (a *app) checkRecognizers(out io.Writer) int {
	rc := a.cfg.Recognizer
	_, _ = fmt.Fprintf(out, "Recognizer engine: %s\n", rc.Engine)
	if rc.Engine != pipeline.EnginePaddle {
		return 0
	}

	problems := 0
	if lib, err := onnx.ResolveLibraryPath(rc.OnnxLibPath); err != nil {
		_, _ = fmt.Fprintf(out, "  ✗ ONNX Runtime: %v\n", err)
		problems++
	} else {
		_, _ = fmt.Fprintf(out, "  ✓ ONNX Runtime: %s\n", lib)
	}

	dir := models.GetModelsDir(rc.ModelsDir)
	_, _ = fmt.Fprintf(out, "Models directory: %s\n", dir)
	for _, script := range recognizer.Scripts() {
		model, dict, err := models.RecognitionPaths(dir, script.String())
		if err == nil {
			err = errors.Join(models.ValidateExists(model), models.ValidateExists(dict))
		}
		if err != nil {
			_, _ = fmt.Fprintf(out, "  ✗ %s: %s\n", script, strings.ReplaceAll(err.Error(), "\n", "; "))
			problems++
			continue
		}
		_, _ = fmt.Fprintf(out, "  ✓ %s: %s\n", script, model)
	}
	return problems
}

func (a *app) checkTranslation(cmd *cobra.Command, out io.Writer) int {
	if !a.cfg.Translation.Enabled {
		_, _ = fmt.Fprintln(out, "Translation: disabled")
		return 0
	}
	client := a.translator()
	tc := client.Config()
	st, err := client.Ping(cmd.Context())
	if err != nil {
		_, _ = fmt.Fprintf(out, "Translation server: %s\n  ✗ %s\n", tc.BaseURL, userMessage(err, tc))
		return 1
	}
	_, _ = fmt.Fprintf(out, "Translation server: %s\n  ✓ reachable (%d models installed)\n", tc.BaseURL, len(st.Models))
	for _, m := range st.Models {
		_, _ = fmt.Fprintf(out, "    - %s\n", m)
	}
	if !st.HasModel() {
		_, _ = fmt.Fprintf(out, "  ✗ model %s is not installed: run 'ollama pull %s'\n", tc.Model, tc.Model)
		return 1
	}
	_, _ = fmt.Fprintf(out, "  ✓ model %s installed\n", tc.Model)
	return 0
}
