//go:build !tesseract

package tesseract

import (
	"context"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

// Enabled reports whether Tesseract support is compiled in.
const Enabled = false

// Backend is a placeholder used when Tesseract support is not compiled in.
type Backend struct {
	script recognizer.ScriptKind
}

// New returns ErrNotEnabled.
func New(script recognizer.ScriptKind, _ Config) (*Backend, error) {
	return nil, ErrNotEnabled
}

// Script returns the script this backend reads.
func (b *Backend) Script() recognizer.ScriptKind { return b.script }

// Recognize returns ErrNotEnabled.
func (b *Backend) Recognize(context.Context, *conditioner.Conditioned) (string, error) {
	return "", ErrNotEnabled
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }
