package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/translate"
)

// userMessage turns a run error into the line shown on the terminal.
// Unreachable translation servers get operator guidance.
func userMessage(err error, tc translate.Config) string {
	info := pipeline.DescribeError(err)
	switch info.Category {
	case pipeline.CategoryNoText:
		return "No text detected in the image"
	case pipeline.CategoryService:
		msg := "Translation service unavailable: " + info.Message
		if errors.Is(err, translate.ErrNetwork) {
			msg += "\n" + translate.Guidance(tc.BaseURL, tc.Model)
		}
		return msg
	case pipeline.CategoryContent:
		return "Translation failed: " + info.Message
	case pipeline.CategoryInput:
		return "Cannot read image: " + info.Message
	case pipeline.CategoryCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("Processing failed: %s", info.Message)
}
