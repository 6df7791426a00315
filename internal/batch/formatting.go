package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// FormatCSV is the batch-only tabular format.
const FormatCSV pipeline.Format = "csv"

// ParseFormat accepts the pipeline formats plus csv.
func ParseFormat(s string) (pipeline.Format, error) {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatCSV)) {
		return FormatCSV, nil
	}
	return pipeline.ParseFormat(s)
}

// Write renders the batch results to w.
func (r *Result) Write(w io.Writer, format pipeline.Format) error {
	if format == FormatCSV {
		return writeCSV(w, r.Files)
	}
	return pipeline.Write(w, format, r.Results()...)
}

var csvHeader = []string{
	"file", "script", "language", "accepted", "recognized_text", "translated_text", "error",
}

// writeCSV writes one row per file.
func writeCSV(w io.Writer, files []pipeline.FileResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range files {
		if err := cw.Write(csvRow(f)); err != nil {
			return fmt.Errorf("writing row for %s: %w", f.Path, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(f pipeline.FileResult) []string {
	row := []string{f.Path, "", "", "false", "", "", ""}
	res := f.Result
	if res == nil {
		if f.Err != nil {
			row[6] = f.Err.Error()
		}
		return row
	}
	if res.Error != nil {
		row[6] = res.Error.Message
		return row
	}
	row[1] = res.Script.String()
	row[2] = string(res.Language)
	row[3] = strconv.FormatBool(res.Accepted)
	row[4] = res.RecognizedText
	row[5] = res.TranslatedText
	if res.TranslationError != nil {
		row[6] = res.TranslationError.Message
	}
	return row
}
