package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/labelscan/internal/models"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/recognizer/paddle"
	"github.com/MeKo-Tech/labelscan/internal/recognizer/tesseract"
)

// Recognition engines.
const (
	EnginePaddle    = "paddle"
	EngineTesseract = "tesseract"
)

// BackendConfig selects and configures the script recognizers.
type BackendConfig struct {
	Engine         string
	ModelsDir      string
	LibraryPath    string
	NumThreads     int
	MinConfidence  float64
	TessdataPrefix string
}

// LoadBackends creates one recognizer per script for the configured engine.
// On failure the recognizers created so far are closed.
func LoadBackends(cfg BackendConfig) (recognizer.Backends, error) {
	var b recognizer.Backends
	for _, script := range recognizer.Scripts() {
		r, err := loadBackend(cfg, script)
		if err != nil {
			if cerr := b.Close(); cerr != nil {
				slog.Warn("Error closing recognizers", "error", cerr)
			}
			return recognizer.Backends{}, &recognizer.BackendError{Script: script, Err: err}
		}
		switch script {
		case recognizer.Latin:
			b.Latin = r
		case recognizer.Han:
			b.Han = r
		case recognizer.Hangul:
			b.Hangul = r
		}
	}
	slog.Info("Script recognizers loaded", "engine", cfg.Engine)
	return b, nil
}

func loadBackend(cfg BackendConfig, script recognizer.ScriptKind) (recognizer.ScriptRecognizer, error) {
	switch cfg.Engine {
	case EnginePaddle, "":
		pc, err := paddle.DefaultConfig(models.GetModelsDir(cfg.ModelsDir), script)
		if err != nil {
			return nil, err
		}
		pc.LibraryPath = cfg.LibraryPath
		pc.NumThreads = cfg.NumThreads
		if cfg.MinConfidence > 0 {
			pc.MinConfidence = cfg.MinConfidence
		}
		return paddle.New(script, pc)
	case EngineTesseract:
		return tesseract.New(script, tesseract.Config{TessdataPrefix: cfg.TessdataPrefix})
	default:
		return nil, fmt.Errorf("unknown recognition engine %q", cfg.Engine)
	}
}
