package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/labelscan/internal/batch"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

// translator returns the translation client, or nil when translation is
// disabled.
func (a *app) translator() *translate.Client {
	if !a.cfg.Translation.Enabled {
		return nil
	}
	return translate.NewClient(a.cfg.TranslateConfig())
}

// buildPipeline loads the recognizers and wires the translation client.
func (a *app) buildPipeline() (*pipeline.Pipeline, *translate.Client, error) {
	backends, err := a.loadBackends(a.cfg.BackendConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load recognizers: %w", err)
	}

	client := a.translator()
	b := pipeline.NewBuilder().WithConfig(a.cfg.PipelineConfig()).WithBackends(backends)
	if client != nil {
		b = b.WithTranslator(client)
	}
	if a.cfg.Verbose {
		b = b.WithObserver(pipeline.StageFunc(func(stage pipeline.Stage, elapsed time.Duration) {
			slog.Debug("Stage finished", "stage", stage, "elapsed_ms", elapsed.Milliseconds())
		}))
	}
	p, err := b.Build()
	if err != nil {
		if cerr := backends.Close(); cerr != nil {
			slog.Warn("Error closing recognizers", "error", cerr)
		}
		return nil, nil, err
	}
	return p, client, nil
}

func closePipeline(p *pipeline.Pipeline) {
	if err := p.Close(); err != nil {
		slog.Warn("Error closing pipeline", "error", err)
	}
}

// addOutputFlags registers the result output flags.
func addOutputFlags(fs *pflag.FlagSet) {
	fs.StringP("format", "f", "text", "output format (text, json, yaml, markdown, html, csv)")
	fs.StringP("output", "o", "", "write results to this file instead of stdout")
	fs.String("save-conditioned", "", "directory to save the conditioned images in")
}

// writeResults renders r to the configured output file or stdout.
func (a *app) writeResults(cmd *cobra.Command, r *batch.Result) (err error) {
	format, err := batch.ParseFormat(a.cfg.Output.Format)
	if err != nil {
		return err
	}
	var w io.Writer = cmd.OutOrStdout()
	if path := a.cfg.Output.File; path != "" {
		f, err := os.Create(path) //nolint:gosec // G304: output path comes from the user
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}
	return r.Write(w, format)
}
