package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSubstitute replaces characters that are not legal in a path segment.
const DefaultSubstitute = "_"

// FoldASCII decomposes value (NFKD) and drops every rune outside ASCII, so
// "Épisode" becomes "Episode".
func FoldASCII(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// SanitizeSegment converts value to a single filesystem-safe path segment.
// Characters other than ASCII letters, digits, underscore, dot and hyphen are
// replaced with substitute. Surrounding whitespace is trimmed and the result
// is optionally lowercased. A result made only of dots ("." or "..") becomes
// substitute so it cannot name the current or parent directory.
func SanitizeSegment(value, substitute string, lower bool) string {
	folded := FoldASCII(value)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if isSegmentRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteString(substitute)
	}
	out := strings.TrimSpace(b.String())
	if lower {
		out = strings.ToLower(out)
	}
	if out != "" && strings.Trim(out, ".") == "" {
		return substitute
	}
	return out
}

// IsSegmentRune reports whether r is kept unchanged by SanitizeSegment.
func IsSegmentRune(r rune) bool {
	return isSegmentRune(r)
}

func isSegmentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '-':
		return true
	}
	return false
}
