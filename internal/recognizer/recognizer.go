// Package recognizer defines the script recognizers and the cascade that
// consults them in a fixed priority order.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
)

// ScriptKind identifies the script family a recognizer is trained for.
type ScriptKind int

const (
	Latin ScriptKind = iota
	Han
	Hangul
)

// Scripts returns every script in cascade priority order.
func Scripts() []ScriptKind {
	return []ScriptKind{Latin, Han, Hangul}
}

func (s ScriptKind) String() string {
	switch s {
	case Latin:
		return "latin"
	case Han:
		return "han"
	case Hangul:
		return "hangul"
	default:
		return fmt.Sprintf("script(%d)", int(s))
	}
}

// ParseScriptKind accepts the names returned by ScriptKind.String.
func ParseScriptKind(s string) (ScriptKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "latin":
		return Latin, nil
	case "han":
		return Han, nil
	case "hangul":
		return Hangul, nil
	}
	return 0, fmt.Errorf("unknown script %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s ScriptKind) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ScriptKind) UnmarshalText(b []byte) error {
	v, err := ParseScriptKind(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ScriptRecognizer reads text of one script family from a conditioned image.
// An empty string means no text was found.
type ScriptRecognizer interface {
	Recognize(ctx context.Context, img *conditioner.Conditioned) (string, error)
}

// Func adapts a plain function to ScriptRecognizer.
type Func func(ctx context.Context, img *conditioner.Conditioned) (string, error)

// Recognize calls f.
func (f Func) Recognize(ctx context.Context, img *conditioner.Conditioned) (string, error) {
	return f(ctx, img)
}

// Backends holds one recognizer per script.
type Backends struct {
	Latin  ScriptRecognizer
	Han    ScriptRecognizer
	Hangul ScriptRecognizer
}

// For returns the recognizer registered for script.
func (b Backends) For(script ScriptKind) ScriptRecognizer {
	switch script {
	case Latin:
		return b.Latin
	case Han:
		return b.Han
	case Hangul:
		return b.Hangul
	default:
		return nil
	}
}

// Close closes every backend that implements io.Closer-like Close.
func (b Backends) Close() error {
	var errs []error
	for _, s := range Scripts() {
		if c, ok := b.For(s).(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s backend: %w", s, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ErrNoBackend is reported for a script without a configured recognizer.
var ErrNoBackend = errors.New("no recognizer configured")

// BackendError reports a failure of a single script recognizer.
type BackendError struct {
	Script ScriptKind
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s recognizer: %v", e.Script, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
