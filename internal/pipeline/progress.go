package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress events while ProcessFiles runs.
type ProgressCallback interface {
	// OnStart is called once with the number of images.
	OnStart(total int)
	// OnProgress is called after every finished image.
	OnProgress(current, total int)
	// OnComplete is called when the batch is finished.
	OnComplete()
	// OnError is called for every image that failed.
	OnError(current int, err error)
}

// NoOpProgressCallback ignores all events.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a progress bar.
type ConsoleProgressCallback struct {
	mu             sync.Mutex
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	lastUpdate     time.Time
	startTime      time.Time
}

// NewConsoleProgressCallback creates a console progress reporter writing to
// writer, or stderr when nil.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithUpdateInterval sets how frequently the progress bar updates.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d labels\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if current < total && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now
	if total <= 0 {
		return
	}

	filled := c.width * current / total
	line := fmt.Sprintf("\r%s[%s%s] %d/%d (%.1f%%)", c.prefix,
		strings.Repeat("█", filled), strings.Repeat("░", c.width-filled),
		current, total, float64(current)/float64(total)*100)
	if elapsed := now.Sub(c.startTime); elapsed > 0 && current > 0 {
		line += fmt.Sprintf(" %.1f/s", float64(current)/elapsed.Seconds())
		if current < total {
			eta := time.Duration(float64(elapsed) * float64(total-current) / float64(current))
			line += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(c.writer, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(current int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sError at label %d: %v\n", c.prefix, current, err)
}

// LogProgressCallback reports progress through slog every interval images.
type LogProgressCallback struct {
	mu        sync.Mutex
	logger    *slog.Logger
	level     slog.Level
	interval  int
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval sets how frequently to log progress (every N images).
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	l.interval = max(interval, 1)
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "Batch started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	elapsed := time.Since(l.startTime)
	l.logger.Log(context.Background(), l.level, "Batch progress",
		"current", current,
		"total", total,
		"rate", fmt.Sprintf("%.1f/s", float64(current)/max(elapsed.Seconds(), 1e-9)),
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, "Batch completed",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(current int, err error) {
	l.logger.Log(context.Background(), slog.LevelError, "Label failed", "current", current, "error", err)
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m {
		cb.OnProgress(current, total)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgressCallback) OnError(current int, err error) {
	for _, cb := range m {
		cb.OnError(current, err)
	}
}
