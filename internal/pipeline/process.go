package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/text"
	"github.com/MeKo-Tech/labelscan/internal/translate"
	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// Timing holds per-stage durations in milliseconds.
type Timing struct {
	ConditionMs int64 `json:"condition_ms" yaml:"condition_ms"`
	RecognizeMs int64 `json:"recognize_ms" yaml:"recognize_ms"`
	NormalizeMs int64 `json:"normalize_ms" yaml:"normalize_ms"`
	DetectMs    int64 `json:"detect_ms" yaml:"detect_ms"`
	TranslateMs int64 `json:"translate_ms" yaml:"translate_ms"`
	TotalMs     int64 `json:"total_ms" yaml:"total_ms"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Source         string                `json:"source,omitempty" yaml:"source,omitempty"`
	Width          int                   `json:"width" yaml:"width"`
	Height         int                   `json:"height" yaml:"height"`
	Conditioning   conditioner.Stats     `json:"conditioning" yaml:"conditioning"`
	RecognizedText string                `json:"recognized_text" yaml:"recognized_text"`
	Script         recognizer.ScriptKind `json:"script" yaml:"script"`
	Accepted       bool                  `json:"accepted" yaml:"accepted"`
	Attempts       []recognizer.Attempt  `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	// RecognitionError is set when the last script recognizer failed.
	RecognitionError string           `json:"recognition_error,omitempty" yaml:"recognition_error,omitempty"`
	Language         text.LanguageTag `json:"language" yaml:"language"`
	TranslatedText   string           `json:"translated_text,omitempty" yaml:"translated_text,omitempty"`
	TranslationError *ErrorInfo       `json:"translation_error,omitempty" yaml:"translation_error,omitempty"`
	// Error is set by ProcessFiles for runs that produced no result.
	Error  *ErrorInfo `json:"error,omitempty" yaml:"error,omitempty"`
	Timing Timing     `json:"timing" yaml:"timing"`
}

// HasText reports whether any text was recognized.
func (r *Result) HasText() bool { return r != nil && r.RecognizedText != "" }

// Process runs the pipeline over img with the pipeline's observer. A
// malformed image returns a *conditioner.DecodeError and cancellation returns
// ctx.Err(), both with a nil result. A failed translation returns the result,
// carrying the recognized text, together with the translation error.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*Result, error) {
	return p.run(ctx, img, "", p.observer)
}

// ProcessObserved is Process with an additional per-run stage observer.
func (p *Pipeline) ProcessObserved(ctx context.Context, img image.Image, obs StageObserver) (*Result, error) {
	return p.run(ctx, img, "", multiObserver{p.observer, obs})
}

// ProcessRaster runs the pipeline over a packed pixel buffer.
func (p *Pipeline) ProcessRaster(ctx context.Context, r conditioner.Raster) (*Result, error) {
	img, err := r.Image()
	if err != nil {
		return nil, err
	}
	return p.run(ctx, img, "", p.observer)
}

// ProcessFile loads path and runs the pipeline over it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, img, path, p.observer)
}

func (p *Pipeline) run(ctx context.Context, img image.Image, source string, obs StageObserver) (*Result, error) {
	if p == nil || p.cascade == nil {
		return nil, errors.New("pipeline not initialized")
	}
	start := time.Now()
	res := &Result{Source: source}
	mark := stageClock(obs)

	// condition
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cond, err := conditioner.Condition(img)
	if err != nil {
		return nil, err
	}
	res.Conditioning = cond.Stats()
	res.Width, res.Height = res.Conditioning.SourceWidth, res.Conditioning.SourceHeight
	if p.cfg.DebugDir != "" {
		conditioner.SaveDebug(cond, p.cfg.DebugDir, source)
	}
	res.Timing.ConditionMs = mark(StageCondition)

	// recognize
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcome, err := p.cascade.Recognize(ctx, cond)
	if err != nil {
		return nil, err
	}
	res.Script = outcome.Script
	res.Accepted = outcome.Accepted
	res.Attempts = outcome.Attempts
	if outcome.Err != nil {
		res.RecognitionError = outcome.Err.Error()
	}
	res.Timing.RecognizeMs = mark(StageRecognize)

	// normalize
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.RecognizedText = text.Normalize(outcome.Text)
	res.Timing.NormalizeMs = mark(StageNormalize)

	// detect
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Language = text.Detect(res.RecognizedText)
	res.Timing.DetectMs = mark(StageDetect)

	slog.Debug("Label recognized", "source", source, "script", res.Script, "accepted", res.Accepted,
		"language", res.Language, "runes", len([]rune(res.RecognizedText)))

	if !p.TranslationEnabled() {
		res.Timing.TotalMs = time.Since(start).Milliseconds()
		return res, nil
	}

	// translate
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	translated, err := p.translator.Translate(ctx, res.RecognizedText, res.Language)
	res.Timing.TranslateMs = mark(StageTranslate)
	res.Timing.TotalMs = time.Since(start).Milliseconds()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		info := DescribeError(err)
		res.TranslationError = &info
		return res, fmt.Errorf("translation: %w", err)
	}
	res.TranslatedText = translated
	return res, nil
}

// stageClock returns a function that reports the time since its previous
// call to obs and returns it in milliseconds.
func stageClock(obs StageObserver) func(Stage) int64 {
	last := time.Now()
	return func(s Stage) int64 {
		now := time.Now()
		d := now.Sub(last)
		last = now
		if obs != nil {
			obs.OnStage(s, d)
		}
		return d.Milliseconds()
	}
}

// Error categories used by DescribeError.
const (
	CategoryNoText    = "no_text"
	CategoryService   = "service"
	CategoryContent   = "content"
	CategoryInput     = "input"
	CategoryCancelled = "cancelled"
	CategoryInternal  = "internal"
)

// ErrorInfo is the serializable form of a run or translation error.
type ErrorInfo struct {
	Kind      string `json:"kind" yaml:"kind"`
	Category  string `json:"category" yaml:"category"`
	Message   string `json:"message" yaml:"message"`
	Retryable bool   `json:"retryable" yaml:"retryable"`
}

// DescribeError classifies err for callers that show it to users. Service
// failures (unreachable or failing translation server) are kept apart from
// content failures (nothing to translate, empty model output).
func DescribeError(err error) ErrorInfo {
	info := ErrorInfo{Kind: "internal", Category: CategoryInternal, Message: err.Error()}

	var te *translate.Error
	var de *conditioner.DecodeError
	var ie *utils.ImageError
	switch {
	case errors.As(err, &te):
		info.Kind = te.Kind.String()
		info.Message = te.Error()
		info.Retryable = te.Retryable()
		switch te.Kind {
		case translate.KindEmptyInput:
			info.Category = CategoryNoText
		case translate.KindNetwork, translate.KindHTTP:
			info.Category = CategoryService
		default:
			info.Category = CategoryContent
		}
	case errors.As(err, &de), errors.As(err, &ie):
		info.Kind = "decode"
		info.Category = CategoryInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		info.Kind = "cancelled"
		info.Category = CategoryCancelled
	}
	return info
}
