package text

import (
	"strings"

	"golang.org/x/text/language"
)

// LanguageTag classifies text by the scripts it contains.
type LanguageTag string

const (
	English    LanguageTag = "en"
	Korean     LanguageTag = "ko"
	Chinese    LanguageTag = "zh"
	MixedAsian LanguageTag = "mixed_asian"
	Unknown    LanguageTag = "unknown"
)

func (t LanguageTag) String() string { return string(t) }

// BCP47 maps the tag onto a BCP 47 language tag. Mixed and unknown text map
// to und.
func (t LanguageTag) BCP47() language.Tag {
	switch t {
	case English:
		return language.English
	case Korean:
		return language.Korean
	case Chinese:
		return language.Chinese
	default:
		return language.Und
	}
}

func isHangul(r rune) bool   { return r >= 0xAC00 && r <= 0xD7AF }
func isCJK(r rune) bool      { return r >= 0x4E00 && r <= 0x9FFF }
func isHiragana(r rune) bool { return r >= 0x3040 && r <= 0x309F }
func isKatakana(r rune) bool { return r >= 0x30A0 && r <= 0x30FF }

func isPlainLatin(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '.', r == ',', r == '-', r == '/', r == '\n':
		return true
	}
	return false
}

// scriptCounts records which script classes occur in a string.
type scriptCounts struct {
	hangul, cjk, kana int
	nonLatin          bool
}

func countScripts(s string) scriptCounts {
	var c scriptCounts
	for _, r := range s {
		switch {
		case isHangul(r):
			c.hangul++
		case isCJK(r):
			c.cjk++
		case isHiragana(r), isKatakana(r):
			c.kana++
		}
		if !isPlainLatin(r) {
			c.nonLatin = true
		}
	}
	return c
}

// Detect classifies s using Unicode ranges. The first matching rule wins:
// plain ASCII text is en, Hangul alone is ko, Han alone is zh, any other mix
// of Asian scripts is mixed_asian, and everything else is unknown.
func Detect(s string) LanguageTag {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	c := countScripts(s)
	asian := c.hangul + c.cjk + c.kana
	switch {
	case !c.nonLatin && asian == 0:
		return English
	case c.hangul > 0 && c.cjk == 0 && c.kana == 0:
		return Korean
	case c.cjk > 0 && c.kana == 0 && c.hangul == 0:
		return Chinese
	case asian > 0:
		return MixedAsian
	default:
		return Unknown
	}
}
