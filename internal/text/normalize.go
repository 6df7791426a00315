// Package text cleans recognized text and classifies it by script.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

var blankLinesRe = regexp.MustCompile(`\n[\t\n\v\f\r \x{85}\x{A0}]*\n`)

// Normalize cleans raw recognizer output. The steps run in this order:
//
//  1. trim surrounding whitespace and control characters
//  2. collapse whitespace runs, newlines included, to one space
//  3. drop control characters other than CR, LF and TAB
//  4. collapse runs of three or more identical '-', '.' or '/' to one
//  5. collapse consecutive blank lines
//
// Step 5 never fires once step 2 has run; the order is kept as is.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimFunc(raw, isSpaceOrControl)
	s = collapseWhitespace(s)
	s = removeControlChars(s)
	s = collapseSeparators(s)
	s = blankLinesRe.ReplaceAllString(s, "\n")
	return s
}

func isSpaceOrControl(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}

// collapseWhitespace replaces every run of whitespace with a single space.
// Control characters inside a run are part of it.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !isSpaceOrControl(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		hasSpace := false
		for j < len(runes) && isSpaceOrControl(runes[j]) {
			if unicode.IsSpace(runes[j]) {
				hasSpace = true
			}
			j++
		}
		if hasSpace {
			b.WriteByte(' ')
		} else {
			for _, r := range runes[i:j] {
				b.WriteRune(r)
			}
		}
		i = j
	}
	return b.String()
}

// removeControlChars strips control characters but keeps \n, \r and \t.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func isSeparator(r rune) bool {
	return r == '-' || r == '.' || r == '/'
}

// collapseSeparators shortens runs of three or more of the same separator.
func collapseSeparators(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); {
		r := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == r {
			j++
		}
		if isSeparator(r) && j-i >= 3 {
			out = append(out, r)
		} else {
			out = append(out, runes[i:j]...)
		}
		i = j
	}
	return string(out)
}
