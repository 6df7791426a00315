package paddle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Charset maps model class indices to tokens. Class 0 is the CTC blank, so
// class i is Tokens[i-1].
type Charset struct {
	Tokens []string
}

// LoadCharset reads a dictionary file with one token per line. A trailing
// space token is appended, as the recognition heads are trained with one.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Error closing dictionary file", "path", path, "error", err)
		}
	}()
	cs, err := readCharset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}

func readCharset(r io.Reader) (*Charset, error) {
	scanner := bufio.NewScanner(r)
	tokens := make([]string, 0, 512)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	tokens = append(tokens, " ")
	return &Charset{Tokens: tokens}, nil
}

// Classes is the number of model output classes, blank included.
func (c *Charset) Classes() int { return len(c.Tokens) + 1 }

// Token returns the token for a model class, or "" for blank and unknown classes.
func (c *Charset) Token(class int) string {
	i := class - 1
	if i < 0 || i >= len(c.Tokens) {
		return ""
	}
	return c.Tokens[i]
}

// Text maps a decoded class sequence to a string.
func (c *Charset) Text(classes []int) string {
	var b strings.Builder
	for _, cls := range classes {
		b.WriteString(c.Token(cls))
	}
	return b.String()
}
