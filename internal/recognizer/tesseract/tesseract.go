//go:build tesseract

package tesseract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

// Enabled reports whether Tesseract support is compiled in.
const Enabled = true

// Backend is a recognizer.ScriptRecognizer backed by Tesseract. A new engine
// client is created per call, so one Backend may be shared between workers.
type Backend struct {
	script recognizer.ScriptKind
	config Config
}

// New returns a Tesseract backend for script.
func New(script recognizer.ScriptKind, cfg Config) (*Backend, error) {
	b := &Backend{script: script, config: cfg}
	slog.Debug("Tesseract recognizer configured", "script", script, "languages", cfg.languages(script))
	return b, nil
}

// Script returns the script this backend reads.
func (b *Backend) Script() recognizer.ScriptKind { return b.script }

// Recognize runs Tesseract over the conditioned raster.
func (b *Backend) Recognize(ctx context.Context, img *conditioner.Conditioned) (string, error) {
	if img == nil {
		return "", errors.New("conditioned image is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := img.PNG()
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("Error closing tesseract client", "error", err)
		}
	}()

	if b.config.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(b.config.TessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(b.config.languages(b.script)...); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if b.config.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(b.config.PageSegMode)); err != nil {
			return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	out, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return out, nil
}

// Close is a no-op; clients are released after every call.
func (b *Backend) Close() error { return nil }
