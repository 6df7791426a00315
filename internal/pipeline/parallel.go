package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for processing many files.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel runs (0 = pipeline Workers)
	ProgressCallback ProgressCallback // Optional progress reporting
	// ContinueOnError keeps the first failure from being returned as the
	// call's error. Per-file errors are always recorded.
	ContinueOnError bool
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path   string
	Result *Result
	Err    error
}

type fileJob struct {
	index int
	path  string
}

type fileOutcome struct {
	index int
	FileResult
}

// ProcessFiles runs one independent pipeline per file on a worker pool.
// Results are returned in input order. Every run loads and owns its own
// buffers; nothing is shared between runs.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string, config ParallelConfig) ([]FileResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.cascade == nil {
		return nil, errors.New("pipeline not initialized")
	}

	workers := config.MaxWorkers
	if workers <= 0 {
		workers = p.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(paths))

	progress := config.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(paths))
	defer progress.OnComplete()

	jobs := make(chan fileJob)
	results := make(chan fileOutcome, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res, err := p.ProcessFile(ctx, job.path)
				results <- fileOutcome{index: job.index, FileResult: FileResult{Path: job.path, Result: res, Err: err}}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- fileJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]FileResult, len(paths))
	done := 0
	for res := range results {
		ordered[res.index] = res.FileResult
		done++
		if res.Err != nil {
			progress.OnError(done, fmt.Errorf("%s: %w", res.Path, res.Err))
		}
		progress.OnProgress(done, len(paths))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range ordered {
		if ordered[i].Path == "" {
			ordered[i].Path = paths[i]
		}
		if ordered[i].Err != nil && ordered[i].Result == nil {
			info := DescribeError(ordered[i].Err)
			ordered[i].Result = &Result{Source: paths[i], Error: &info}
		}
	}
	if config.ContinueOnError {
		return ordered, nil
	}
	for _, r := range ordered {
		if r.Err != nil {
			return ordered, fmt.Errorf("image %s: %w", r.Path, r.Err)
		}
	}
	return ordered, nil
}

// BatchStats summarizes a ProcessFiles call.
type BatchStats struct {
	TotalImages      int           `json:"total_images" yaml:"total_images"`
	Recognized       int           `json:"recognized" yaml:"recognized"`
	Translated       int           `json:"translated" yaml:"translated"`
	FailedImages     int           `json:"failed_images" yaml:"failed_images"`
	WorkerCount      int           `json:"worker_count" yaml:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns" yaml:"total_duration_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec" yaml:"throughput_per_sec"`
}

// CalculateBatchStats calculates statistics for a finished batch.
func CalculateBatchStats(results []FileResult, duration time.Duration, workerCount int) BatchStats {
	st := BatchStats{TotalImages: len(results), WorkerCount: workerCount, TotalDuration: duration}
	for _, r := range results {
		if r.Err != nil && (r.Result == nil || r.Result.Error != nil) {
			st.FailedImages++
			continue
		}
		if r.Result.HasText() {
			st.Recognized++
		}
		if r.Result.TranslatedText != "" {
			st.Translated++
		}
	}
	if duration > 0 {
		st.ThroughputPerSec = float64(len(results)-st.FailedImages) / duration.Seconds()
	}
	return st
}
