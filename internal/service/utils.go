package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// sanitizeUTF8 removes invalid UTF-8 sequences from string
// This prevents PostgreSQL encoding errors when saving text
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		result.WriteRune(r)
		s = s[size:]
	}

	return result.String()
}

// normalizeQuestion lowercases and collapses whitespace so that trivially
// different phrasings of the same question share one cache fingerprint.
func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// supportedLanguages are the answer languages the service knows prompts and
// fallback texts for.
var supportedLanguages = map[string]bool{
	"uz": true,
	"ru": true,
	"en": true,
}

// detectLanguage guesses the language of a text, constrained to the
// supported set. Unrecognized or low-confidence input defaults to Uzbek.
func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	switch info.Lang {
	case whatlanggo.Uzb:
		return "uz"
	case whatlanggo.Rus, whatlanggo.Ukr, whatlanggo.Bel:
		return "ru"
	case whatlanggo.Eng:
		return "en"
	}

	// Anything else in cyrillic script reads best as Russian here.
	if whatlanggo.DetectScript(text) == unicode.Cyrillic {
		return "ru"
	}
	return "uz"
}

// resolveLanguage picks the turn language: an explicit, supported request
// wins; otherwise the question text decides.
func resolveLanguage(requested, question string) string {
	if supportedLanguages[requested] {
		return requested
	}
	return detectLanguage(question)
}
