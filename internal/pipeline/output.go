package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// Format is an output format for results.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatMarkdown, FormatHTML}
}

// ParseFormat accepts a format name; "md" and "yml" are aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Write renders results to w. A single result is written as an object, more
// than one as a list.
func Write(w io.Writer, format Format, results ...*Result) error {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatText, "":
		out = []byte(ToText(results...))
	case FormatJSON:
		out, err = ToJSON(results...)
	case FormatYAML:
		out, err = ToYAML(results...)
	case FormatMarkdown:
		out = []byte(ToMarkdown(results...))
	case FormatHTML:
		out, err = ToHTML(results...)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func single(results []*Result) any {
	if len(results) == 1 {
		return results[0]
	}
	return results
}

// ToJSON serializes results to indented JSON.
func ToJSON(results ...*Result) ([]byte, error) {
	b, err := json.MarshalIndent(single(results), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ToYAML serializes results to YAML.
func ToYAML(results ...*Result) ([]byte, error) {
	return yaml.Marshal(single(results))
}

// ToText renders the recognized and translated text for reading in a terminal.
func ToText(results ...*Result) string {
	var b strings.Builder
	for i, r := range results {
		if r == nil {
			continue
		}
		if len(results) > 1 {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "== %s ==\n", r.Source)
		}
		if r.Error != nil {
			fmt.Fprintf(&b, "Error: %s\n", r.Error.Message)
			continue
		}
		if !r.HasText() {
			b.WriteString("No text detected\n")
		} else {
			fmt.Fprintf(&b, "Recognized text (%s, %s):\n%s\n", r.Script, r.Language, r.RecognizedText)
		}
		switch {
		case r.TranslatedText != "":
			fmt.Fprintf(&b, "\nTranslation (es):\n%s\n", r.TranslatedText)
		case r.TranslationError != nil && r.TranslationError.Category != CategoryNoText:
			fmt.Fprintf(&b, "\nTranslation failed: %s\n", r.TranslationError.Message)
		}
	}
	return b.String()
}

// ToMarkdown renders a report with one section per result.
func ToMarkdown(results ...*Result) string {
	var b strings.Builder
	b.WriteString("# Label scan report\n")
	for i, r := range results {
		if r == nil {
			continue
		}
		title := r.Source
		if title == "" {
			title = fmt.Sprintf("Label %d", i+1)
		}
		fmt.Fprintf(&b, "\n## %s\n\n", mdEscape(title))
		if r.Error != nil {
			fmt.Fprintf(&b, "**Error:** %s\n", mdEscape(r.Error.Message))
			continue
		}
		b.WriteString("| Field | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Size | %dx%d |\n", r.Width, r.Height)
		fmt.Fprintf(&b, "| Script | %s |\n", r.Script)
		fmt.Fprintf(&b, "| Accepted | %t |\n", r.Accepted)
		fmt.Fprintf(&b, "| Language | %s |\n", r.Language)
		fmt.Fprintf(&b, "| Time | %d ms |\n", r.Timing.TotalMs)

		b.WriteString("\n### Recognized text\n\n")
		if r.HasText() {
			fmt.Fprintf(&b, "```\n%s\n```\n", r.RecognizedText)
		} else {
			b.WriteString("_No text detected._\n")
		}
		if r.TranslatedText != "" {
			b.WriteString("\n### Translation\n\n")
			for _, line := range strings.Split(r.TranslatedText, "\n") {
				fmt.Fprintf(&b, "> %s\n", mdEscape(line))
			}
		} else if r.TranslationError != nil {
			fmt.Fprintf(&b, "\n**Translation failed:** %s\n", mdEscape(r.TranslationError.Message))
		}
	}
	return b.String()
}

// ToHTML renders the markdown report as a standalone HTML page.
func ToHTML(results ...*Result) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(ToMarkdown(results...)), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html lang=\"es\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString("Label scan report"))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

var mdReplacer = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "|", `\|`, "<", "&lt;", ">", "&gt;", "#", `\#`,
)

func mdEscape(s string) string { return mdReplacer.Replace(s) }
