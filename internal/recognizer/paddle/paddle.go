// Package paddle recognizes text with PaddleOCR recognition models run
// through ONNX Runtime, one model per script family.
package paddle

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/mempool"
	"github.com/MeKo-Tech/labelscan/internal/models"
	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

// Config holds configuration for one script backend.
type Config struct {
	ModelPath        string
	DictPath         string
	LibraryPath      string
	ImageHeight      int     // model input height
	MaxWidth         int     // line width clamp after resizing, 0 = none
	PadWidthMultiple int     // right-pad line width to this multiple
	NumThreads       int     // intra-op threads, 0 = runtime default
	MinConfidence    float64 // lines decoded with a lower mean probability are dropped
}

// DefaultConfig returns the configuration for script using the models in
// modelsDir.
func DefaultConfig(modelsDir string, script recognizer.ScriptKind) (Config, error) {
	model, dict, err := models.RecognitionPaths(modelsDir, script.String())
	if err != nil {
		return Config{}, err
	}
	return Config{
		ModelPath:        model,
		DictPath:         dict,
		ImageHeight:      48,
		MaxWidth:         3200,
		PadWidthMultiple: 8,
		MinConfidence:    0.5,
	}, nil
}

// runner executes the recognition model.
type runner interface {
	Run(t onnx.Tensor) ([]float32, []int64, error)
	Close() error
}

// Backend is a recognizer.ScriptRecognizer for one script.
type Backend struct {
	script  recognizer.ScriptKind
	config  Config
	charset *Charset
	model   runner
	segment segmentConfig
}

// New loads the dictionary and model for script.
func New(script recognizer.ScriptKind, cfg Config) (*Backend, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%s model file not found: %s", script, cfg.ModelPath)
	}
	charset, err := LoadCharset(cfg.DictPath)
	if err != nil {
		return nil, err
	}
	sess, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.LibraryPath,
		NumThreads:  cfg.NumThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("%s recognizer: %w", script, err)
	}
	if shape := sess.InputShape(); len(shape) == 4 && shape[2] > 0 && cfg.ImageHeight <= 0 {
		cfg.ImageHeight = int(shape[2])
	}
	slog.Debug("Script recognizer loaded", "script", script, "model", cfg.ModelPath,
		"charset_size", len(charset.Tokens))
	return newBackend(script, cfg, charset, sess), nil
}

func newBackend(script recognizer.ScriptKind, cfg Config, cs *Charset, model runner) *Backend {
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = 48
	}
	return &Backend{script: script, config: cfg, charset: cs, model: model, segment: defaultSegmentConfig()}
}

// Script returns the script this backend reads.
func (b *Backend) Script() recognizer.ScriptKind { return b.script }

// Recognize reads every text line of img and joins them with newlines.
func (b *Backend) Recognize(ctx context.Context, img *conditioner.Conditioned) (string, error) {
	if img == nil {
		return "", errors.New("conditioned image is nil")
	}
	start := time.Now()
	gray := img.Image()
	invert := inkIsWhite(gray)
	rects := segmentLines(gray, b.segment)

	lines := make([]string, 0, len(rects))
	for i, r := range rects {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, conf, err := b.recognizeLine(cropLine(gray, r, invert))
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i, err)
		}
		if line == "" || conf < b.config.MinConfidence {
			slog.Debug("Dropping text line", "script", b.script, "line", i, "confidence", conf)
			continue
		}
		lines = append(lines, line)
	}
	slog.Debug("Script recognition finished", "script", b.script, "lines_found", len(rects),
		"lines_kept", len(lines), "duration_ms", time.Since(start).Milliseconds())
	return strings.Join(lines, "\n"), nil
}

func (b *Backend) recognizeLine(line image.Image) (string, float64, error) {
	resized, err := resizeForRecognition(line, b.config.ImageHeight, b.config.MaxWidth, b.config.PadWidthMultiple)
	if err != nil {
		return "", 0, err
	}
	tensor, err := toTensor(resized)
	if err != nil {
		return "", 0, err
	}
	data, shape, err := b.model.Run(tensor)
	mempool.PutFloat32(tensor.Data)
	if err != nil {
		return "", 0, err
	}
	decoded := decodeGreedy(data, shape, b.charset.Classes())
	if len(decoded) == 0 {
		return "", 0, fmt.Errorf("unexpected model output shape %v", shape)
	}
	text := norm.NFC.String(b.charset.Text(decoded[0].Indices))
	return strings.TrimSpace(text), meanProb(decoded[0].Probs), nil
}

// Close releases the model session.
func (b *Backend) Close() error {
	if b.model == nil {
		return nil
	}
	return b.model.Close()
}
