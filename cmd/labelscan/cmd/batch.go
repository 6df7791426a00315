package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/batch"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Scan every label photo under the given paths in parallel",
		Long: `Scan label photos in parallel. Directories are searched for image files
(recursively with --recursive); files are processed by a pool of workers,
each run owning its own buffers.

Examples:
  labelscan batch photos/
  labelscan batch photos/ --recursive --workers 8
  labelscan batch photos/ --include 'IMG_*' --exclude '*_thumb*' --format csv -o labels.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args)
		},
	}
	fs := cmd.Flags()
	fs.BoolP("recursive", "r", false, "search directories recursively")
	fs.IntP("workers", "w", 4, "number of parallel workers")
	fs.Bool("continue-on-error", true, "keep going when an image fails")
	fs.StringSlice("include", nil, "only process files matching these patterns")
	fs.StringSlice("exclude", nil, "skip files matching these patterns")
	fs.BoolP("quiet", "q", false, "no progress bar or summary")
	addRecognizerFlags(fs)
	addTranslationFlags(fs)
	addOutputFlags(fs)
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	if _, err := batch.ParseFormat(a.cfg.Output.Format); err != nil {
		return err
	}
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	quiet, _ := cmd.Flags().GetBool("quiet")

	p, _, err := a.buildPipeline()
	if err != nil {
		return err
	}
	defer closePipeline(p)

	bc := batch.Config{
		Recursive:       a.cfg.Batch.Recursive,
		IncludePatterns: include,
		ExcludePatterns: exclude,
		Workers:         a.cfg.Batch.Workers,
		ContinueOnError: a.cfg.Batch.ContinueOnError,
	}
	if !quiet {
		bc.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Scanning")
	}

	res, err := batch.ProcessBatch(cmd.Context(), p, args, bc)
	if err != nil {
		return err
	}
	if err := a.writeResults(cmd, res); err != nil {
		return err
	}
	if !quiet {
		res.PrintSummary(cmd.ErrOrStderr())
	}
	return nil
}
