package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/batch"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

func newScanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <image>...",
		Short: "Read and translate label photos",
		Long: `Read the text on one or more label photos and translate it to Spanish.

The recognized text is printed even when the translation fails. Images that
cannot be decoded are reported and make the command exit with an error.

Supported formats: JPEG, PNG, BMP, GIF, TIFF, WebP

Examples:
  labelscan scan label.jpg
  labelscan scan front.jpg back.jpg --format json
  labelscan scan label.png --translate=false --save-conditioned debug/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args)
		},
	}
	addRecognizerFlags(cmd.Flags())
	addTranslationFlags(cmd.Flags())
	addOutputFlags(cmd.Flags())
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, paths []string) error {
	if _, err := batch.ParseFormat(a.cfg.Output.Format); err != nil {
		return err
	}
	p, _, err := a.buildPipeline()
	if err != nil {
		return err
	}
	defer closePipeline(p)

	ctx := cmd.Context()
	tc := a.cfg.TranslateConfig()
	files := make([]pipeline.FileResult, 0, len(paths))
	failed := 0
	for _, path := range paths {
		res, err := p.ProcessFile(ctx, path)
		if errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, userMessage(err, tc))
			if res == nil {
				failed++
				info := pipeline.DescribeError(err)
				res = &pipeline.Result{Source: path, Error: &info}
			}
		}
		files = append(files, pipeline.FileResult{Path: path, Result: res, Err: err})
	}

	if err := a.writeResults(cmd, &batch.Result{Files: files}); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be processed", failed, len(paths))
	}
	return nil
}
