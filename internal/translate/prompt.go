package translate

import (
	"fmt"
	"unicode/utf8"

	"github.com/MeKo-Tech/labelscan/internal/text"
)

const (
	// MaxPromptRunes caps the source text placed in a prompt.
	MaxPromptRunes = 500
	// Temperature is the sampling temperature sent with every request.
	Temperature = 0.3
	// MaxTokens bounds the generated translation.
	MaxTokens = 500
)

const (
	promptKorean = "Traduce el siguiente texto del coreano al español. Es una etiqueta de producto. " +
		"Mantén secciones como ingredientes, instrucciones, advertencias. " +
		"Solo devuelve la traducción al español, sin explicaciones adicionales.\n\nTexto original:\n%s"
	promptChinese = "Traduce el siguiente texto del chino al español. Es una etiqueta de producto. " +
		"Mantén secciones como ingredientes, instrucciones, advertencias. " +
		"Solo devuelve la traducción al español, sin explicaciones adicionales.\n\nTexto original:\n%s"
	promptMixedAsian = "Traduce el siguiente texto asiático mixto (chino/japonés/coreano) al español. " +
		"Es una etiqueta de producto. " +
		"Mantén secciones como ingredientes, instrucciones, advertencias. " +
		"Solo devuelve la traducción al español, sin explicaciones adicionales.\n\nTexto original:\n%s"
	promptDefault = "Traduce el siguiente texto al español. Es una etiqueta de producto en inglés. " +
		"Mantén el formato original (listas, secciones). " +
		"Solo devuelve la traducción, máximo 300 palabras, sin introducciones.\n\nTexto original:\n%s"
)

// Options are the generation options of a request.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// Request is the body of POST /api/generate. It is built once per call and
// not modified afterwards.
type Request struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

// Template returns the prompt template selected by tag. English and unknown
// text share the default template.
func Template(tag text.LanguageTag) string {
	switch tag {
	case text.Korean:
		return promptKorean
	case text.Chinese:
		return promptChinese
	case text.MixedAsian:
		return promptMixedAsian
	default:
		return promptDefault
	}
}

// Prompt interpolates the truncated source text into the template for tag.
func Prompt(src string, tag text.LanguageTag) string {
	return fmt.Sprintf(Template(tag), Truncate(src, MaxPromptRunes))
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// BuildRequest returns the generate request for src.
func BuildRequest(model, src string, tag text.LanguageTag) Request {
	return Request{
		Model:  model,
		Prompt: Prompt(src, tag),
		Stream: false,
		Options: Options{
			Temperature: Temperature,
			NumPredict:  MaxTokens,
		},
	}
}
