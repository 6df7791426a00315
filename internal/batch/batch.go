// Package batch scans every label photo under a set of paths.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// Config holds batch options.
type Config struct {
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	Workers         int
	ContinueOnError bool
	Progress        pipeline.ProgressCallback
}

// Runner is the part of the pipeline a batch needs.
type Runner interface {
	ProcessFiles(ctx context.Context, paths []string, config pipeline.ParallelConfig) ([]pipeline.FileResult, error)
}

// Result holds the outcome of a batch.
type Result struct {
	Files    []pipeline.FileResult
	Duration time.Duration
	Stats    pipeline.BatchStats
}

// ErrNoImages is returned when the arguments contain no image files.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers the images under args and runs them on p.
func ProcessBatch(ctx context.Context, p Runner, args []string, cfg Config) (*Result, error) {
	files, err := Discover(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	start := time.Now()
	results, err := p.ProcessFiles(ctx, files, pipeline.ParallelConfig{
		MaxWorkers:       cfg.Workers,
		ProgressCallback: cfg.Progress,
		ContinueOnError:  cfg.ContinueOnError,
	})
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	duration := time.Since(start)

	return &Result{
		Files:    results,
		Duration: duration,
		Stats:    pipeline.CalculateBatchStats(results, duration, cfg.Workers),
	}, nil
}

// Results returns the pipeline results in input order. Failed files carry
// only their Source and Error.
func (r *Result) Results() []*pipeline.Result {
	out := make([]*pipeline.Result, 0, len(r.Files))
	for _, f := range r.Files {
		if f.Result != nil {
			out = append(out, f.Result)
		}
	}
	return out
}

// PrintSummary writes the batch statistics.
func (r *Result) PrintSummary(w io.Writer) {
	s := r.Stats
	_, _ = fmt.Fprintf(w, "\nProcessed %d labels in %s: %d with text, %d translated, %d failed\n",
		s.TotalImages, r.Duration.Round(time.Millisecond), s.Recognized, s.Translated, s.FailedImages)
	if s.ThroughputPerSec > 0 {
		_, _ = fmt.Fprintf(w, "%.2f labels/s with %d workers\n", s.ThroughputPerSec, s.WorkerCount)
	}
}
