// Package pipeline runs one label photo through conditioning, script
// recognition, normalization, language detection and translation.
package pipeline

import (
	"context"
	"errors"
	"runtime"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/text"
)

// Translator turns recognized text into Spanish.
type Translator interface {
	Translate(ctx context.Context, src string, tag text.LanguageTag) (string, error)
}

// Config holds the pipeline options.
type Config struct {
	// Translate enables the translation stage.
	Translate bool
	// DebugDir receives a PNG of every conditioned image when set.
	DebugDir string
	// Workers bounds concurrent runs in ProcessFiles, 0 = runtime.NumCPU().
	Workers int
}

// DefaultConfig returns a pipeline config with translation enabled.
func DefaultConfig() Config {
	return Config{
		Translate: true,
		Workers:   runtime.NumCPU(),
	}
}

// Pipeline is safe for concurrent use as long as its recognizers and
// translator are. Runs share no mutable state.
type Pipeline struct {
	cfg        Config
	cascade    *recognizer.Cascade
	translator Translator
	observer   StageObserver
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	backends   recognizer.Backends
	translator Translator
	observer   StageObserver
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithBackends sets all three script recognizers.
func (b *Builder) WithBackends(backends recognizer.Backends) *Builder {
	b.backends = backends
	return b
}

// WithBackend sets the recognizer for one script.
func (b *Builder) WithBackend(script recognizer.ScriptKind, r recognizer.ScriptRecognizer) *Builder {
	switch script {
	case recognizer.Latin:
		b.backends.Latin = r
	case recognizer.Han:
		b.backends.Han = r
	case recognizer.Hangul:
		b.backends.Hangul = r
	}
	return b
}

// WithTranslator sets the translation client.
func (b *Builder) WithTranslator(t Translator) *Builder {
	b.translator = t
	return b
}

// WithTranslation toggles the translation stage.
func (b *Builder) WithTranslation(enabled bool) *Builder {
	b.cfg.Translate = enabled
	return b
}

// WithDebugDir enables dumping conditioned images into dir.
func (b *Builder) WithDebugDir(dir string) *Builder {
	b.cfg.DebugDir = dir
	return b
}

// WithWorkers sets the number of concurrent runs in ProcessFiles.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Workers = n
	}
	return b
}

// WithObserver sets the default stage observer.
func (b *Builder) WithObserver(o StageObserver) *Builder {
	b.observer = o
	return b
}

// Config returns the current builder configuration (for inspection/testing).
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.backends.Latin == nil && b.backends.Han == nil && b.backends.Hangul == nil {
		return nil, errors.New("no script recognizer configured")
	}
	if b.cfg.Translate && b.translator == nil {
		return nil, errors.New("translation enabled but no translator configured")
	}
	if b.cfg.Workers <= 0 {
		b.cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		cfg:        b.cfg,
		cascade:    recognizer.NewCascade(b.backends),
		translator: b.translator,
		observer:   b.observer,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// TranslationEnabled reports whether runs include the translation stage.
func (p *Pipeline) TranslationEnabled() bool { return p.cfg.Translate && p.translator != nil }

// Close releases the recognizers.
func (p *Pipeline) Close() error {
	if p == nil || p.cascade == nil {
		return nil
	}
	return p.cascade.Backends().Close()
}

// RecognitionOnly returns a view of p that skips the translation stage. The
// view shares p's recognizers; close p, not the view.
func (p *Pipeline) RecognitionOnly() *Pipeline {
	cp := *p
	cp.cfg.Translate = false
	return &cp
}
