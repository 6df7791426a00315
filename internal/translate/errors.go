package translate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a translation failure.
type Kind int

const (
	KindEmptyInput Kind = iota + 1
	KindNetwork
	KindHTTP
	KindParse
	KindEmptyTranslation
)

func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty_input"
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	case KindEmptyTranslation:
		return "empty_translation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against *Error.
var (
	ErrEmptyInput       = errors.New("no text to translate")
	ErrNetwork          = errors.New("translation service unreachable")
	ErrHTTP             = errors.New("translation service returned an error status")
	ErrParse            = errors.New("could not parse translation response")
	ErrEmptyTranslation = errors.New("model returned no translation")
)

// Error is returned by Client for every failed translation except
// cancellation.
type Error struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Body       string
	// Language is the tag the prompt was built for.
	Language string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("Error HTTP %d: %s", e.StatusCode, e.Body)
	case KindNetwork:
		return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
	case KindParse:
		return fmt.Sprintf("%v: %v", ErrParse, e.Err)
	case KindEmptyTranslation:
		return fmt.Sprintf("%v (check that the model handles prompts for %q)", ErrEmptyTranslation, e.Language)
	case KindEmptyInput:
		return ErrEmptyInput.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "translation failed"
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindEmptyInput:
		return ErrEmptyInput
	case KindNetwork:
		return ErrNetwork
	case KindHTTP:
		return ErrHTTP
	case KindParse:
		return ErrParse
	case KindEmptyTranslation:
		return ErrEmptyTranslation
	}
	return nil
}

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindHTTP:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// IsRetryable reports whether err is a retryable translation error.
func IsRetryable(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Retryable()
}

// Guidance returns operator hints for a network failure against baseURL.
func Guidance(baseURL, model string) string {
	var b strings.Builder
	b.WriteString("Check that:\n")
	b.WriteString("1. Ollama is running: start it with 'ollama serve'\n")
	fmt.Fprintf(&b, "2. The host and port are correct: %s\n", baseURL)
	b.WriteString("3. The firewall allows TCP port 11434\n")
	b.WriteString("4. From an Android emulator the host is reachable as http://10.0.2.2:11434\n")
	fmt.Fprintf(&b, "5. The model is installed: 'ollama list' shows '%s'", model)
	return b.String()
}
