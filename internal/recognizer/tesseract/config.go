// Package tesseract recognizes text with the Tesseract engine through
// gosseract. It is compiled in only with the "tesseract" build tag; without
// it New returns ErrNotEnabled.
//
// To enable it, install Tesseract with the eng, chi_sim and kor language data
// and build with:
//
//	go build -tags tesseract
package tesseract

import (
	"errors"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

// ErrNotEnabled is returned when the binary was built without Tesseract support.
var ErrNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")

// Config holds configuration for one script backend.
type Config struct {
	// Languages overrides the traineddata names used for the script.
	Languages []string
	// TessdataPrefix points to a tessdata directory, empty for the system default.
	TessdataPrefix string
	// PageSegMode is the Tesseract page segmentation mode, 0 keeps the engine default.
	PageSegMode int
}

// Languages returns the traineddata names for script.
func Languages(script recognizer.ScriptKind) []string {
	switch script {
	case recognizer.Han:
		return []string{"chi_sim"}
	case recognizer.Hangul:
		return []string{"kor"}
	default:
		return []string{"eng"}
	}
}

func (c Config) languages(script recognizer.ScriptKind) []string {
	if len(c.Languages) > 0 {
		return c.Languages
	}
	return Languages(script)
}
