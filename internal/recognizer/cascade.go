package recognizer

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/text"
)

// AcceptThreshold is the normalized length, in characters, that a non-final
// recognizer has to exceed for the cascade to stop early.
const AcceptThreshold = 15

// Attempt records one recognizer invocation.
type Attempt struct {
	Script        ScriptKind    `json:"script" yaml:"script"`
	Raw           string        `json:"raw,omitempty" yaml:"raw,omitempty"`
	NormalizedLen int           `json:"normalized_length" yaml:"normalized_length"`
	Accepted      bool          `json:"accepted" yaml:"accepted"`
	Err           error         `json:"-" yaml:"-"`
	Duration      time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Outcome is the result of a cascade run. Text is never missing: no text is
// the empty string.
type Outcome struct {
	// Text is the accepted normalized text, or the raw output of the last
	// recognizer when none was accepted.
	Text string
	// Script is the recognizer that produced Text.
	Script ScriptKind
	// Accepted is false when the cascade ran out of recognizers.
	Accepted bool
	Attempts []Attempt
	// Err is set when the last recognizer failed. Text is empty then.
	Err error
}

// Failed reports whether the outcome carries a recognizer failure.
func (o Outcome) Failed() bool { return o.Err != nil }

// AttemptObserver is notified after each recognizer call.
type AttemptObserver func(Attempt)

// Cascade runs the script recognizers one at a time in priority order.
type Cascade struct {
	backends Backends
	observer AttemptObserver
}

// NewCascade returns a cascade over b.
func NewCascade(b Backends) *Cascade {
	return &Cascade{backends: b}
}

// WithObserver sets a callback invoked after every attempt.
func (c *Cascade) WithObserver(fn AttemptObserver) *Cascade {
	c.observer = fn
	return c
}

// Backends returns the configured recognizers.
func (c *Cascade) Backends() Backends { return c.backends }

// Recognize tries Latin, Han and Hangul in that order. It stops at the first
// output whose normalized form is longer than AcceptThreshold. Rejected
// output is discarded. When no recognizer is accepted, the last one's raw
// output is returned as is, even if empty. The returned error is non-nil only
// when ctx is done before a recognizer is invoked.
func (c *Cascade) Recognize(ctx context.Context, img *conditioner.Conditioned) (Outcome, error) {
	scripts := Scripts()
	out := Outcome{Attempts: make([]Attempt, 0, len(scripts))}

	for i, script := range scripts {
		if err := ctx.Err(); err != nil {
			return Outcome{Attempts: out.Attempts}, err
		}
		last := i == len(scripts)-1

		att := c.try(ctx, script, img)
		out.Attempts = append(out.Attempts, att)

		if att.Err != nil {
			slog.Debug("Recognizer failed", "script", script, "error", att.Err, "last", last)
			c.notify(att)
			if last {
				out.Script = script
				out.Err = att.Err
				return out, nil
			}
			continue
		}

		if att.NormalizedLen > AcceptThreshold {
			out.Attempts[i].Accepted = true
			att.Accepted = true
			c.notify(att)
			out.Text = text.Normalize(att.Raw)
			out.Script = script
			out.Accepted = true
			slog.Debug("Recognition accepted", "script", script, "length", att.NormalizedLen,
				"text", preview(out.Text))
			return out, nil
		}

		c.notify(att)
		slog.Debug("Recognition rejected", "script", script, "length", att.NormalizedLen,
			"threshold", AcceptThreshold, "last", last)
		if last {
			out.Text = att.Raw
			out.Script = script
			return out, nil
		}
	}
	return out, nil
}

func (c *Cascade) try(ctx context.Context, script ScriptKind, img *conditioner.Conditioned) Attempt {
	att := Attempt{Script: script}
	backend := c.backends.For(script)
	if backend == nil {
		att.Err = &BackendError{Script: script, Err: ErrNoBackend}
		return att
	}
	start := time.Now()
	raw, err := backend.Recognize(ctx, img)
	att.Duration = time.Since(start)
	if err != nil {
		att.Err = &BackendError{Script: script, Err: err}
		return att
	}
	att.Raw = raw
	att.NormalizedLen = utf8.RuneCountInString(text.Normalize(raw))
	return att
}

func (c *Cascade) notify(att Attempt) {
	if c.observer != nil {
		c.observer(att)
	}
}

// preview shortens s for log output.
func preview(s string) string {
	const n = 50
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
