// Package chunker splits extracted document text into overlapping,
// quality-filtered chunks suitable for embedding.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 100

	// Quality gate thresholds. Chunks below either are dropped.
	MinChars = 50
	MinWords = 10
)

var (
	markdownLinkRe = regexp.MustCompile(`\[[^\]]*\]\s*\([^)]+\)`)
	urlRe          = regexp.MustCompile(`https?://\S+`)
	spaceRe        = regexp.MustCompile(`\s+`)
	controlRe      = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cleans the text, cuts it into overlapping chunks preferring sentence
// and paragraph boundaries, applies the quality gate and removes near
// duplicates. Deterministic: the same input and parameters always yield the
// same sequence.
func (c *Chunker) Split(text string) []string {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(cleaned) {
		end := start + c.size
		if end >= len(cleaned) {
			end = len(cleaned)
		} else {
			end = breakPoint(cleaned, start, end)
		}

		chunk := strings.TrimSpace(cleaned[start:end])
		if Accept(chunk) {
			chunks = append(chunks, chunk)
		}

		if end == len(cleaned) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return dedupe(chunks)
}

// Clean collapses whitespace and strips URLs, markdown links and control
// characters before splitting.
func Clean(text string) string {
	text = markdownLinkRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")
	text = controlRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Accept is the chunk quality gate: minimum stripped length, minimum word
// count, and not entirely upper-case (a heuristic for boilerplate headers).
func Accept(chunk string) bool {
	stripped := strings.TrimSpace(chunk)
	if len(stripped) < MinChars {
		return false
	}
	if len(strings.Fields(stripped)) < MinWords {
		return false
	}
	if isAllUpper(stripped) {
		return false
	}
	return true
}

// breakPoint moves the cut position back from limit to the nearest sentence
// end, then any whitespace, so chunks do not end mid-word. Falls back to a
// hard cut on a rune boundary when the window has no break at all.
func breakPoint(text string, start, limit int) int {
	low := start + (limit-start)/2

	for i := limit - 1; i > low; i-- {
		ch := text[i]
		if ch == '\n' {
			return i
		}
		if (ch == '.' || ch == '!' || ch == '?') && i+1 < len(text) && text[i+1] == ' ' {
			return i + 1
		}
	}
	for i := limit - 1; i > low; i-- {
		if text[i] == ' ' {
			return i
		}
	}
	for limit > start && text[limit]&0xC0 == 0x80 {
		limit--
	}
	return limit
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// dedupe drops chunks whose word sets overlap an earlier chunk by more than
// 70% (Jaccard), which catches repeated headers and footers.
func dedupe(chunks []string) []string {
	var unique []string
	var seen []map[string]struct{}

	for _, chunk := range chunks {
		words := wordSet(chunk)
		duplicate := false
		for _, prev := range seen {
			if jaccard(words, prev) > 0.7 {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, chunk)
			seen = append(seen, words)
		}
	}
	return unique
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
