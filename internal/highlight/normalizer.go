package highlight

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// The analyzer's snippet and the renderer's extracted text diverge mostly in
// punctuation, currency glyphs, and whitespace. Normalize bridges that gap
// while preserving word boundaries and the numeric tokens that carry meaning
// in a loan document (amounts, percentages, parenthesised clauses).

var (
	// reDotRun matches ellipsis-like runs of two or more periods. NFKC has
	// already rewritten U+2026 (…) as three periods by the time this runs.
	reDotRun = regexp.MustCompile(`\.{2,}`)
	// reSpaceRun matches any whitespace run, for collapsing to one space.
	reSpaceRun = regexp.MustCompile(`\s+`)
)

// keepRune reports whether a rune survives the strip pass: word characters
// (letters, digits, underscore), whitespace, and the small punctuation set
// that is meaningful in financial text.
func keepRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
		return true
	}
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', '%', '(', ')', '-':
		return true
	}
	return false
}

// Normalize canonicalizes text for comparison. It is deterministic, total,
// and idempotent; it never fails. Applied in order: NFKC fold, lower-case,
// drop ellipsis runs, drop currency symbols, strip everything but word
// characters, whitespace and `.` `%` `(` `)` `-`, collapse whitespace runs to
// a single space, trim.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := norm.NFKC.String(text)
	s = strings.ToLower(s)
	s = reDotRun.ReplaceAllString(s, " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Sc, r) { // currency symbols: ₹ $ € £ ¥ and friends
			continue
		}
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	// Stripping can butt two periods together (e.g. "a.$.b"); collapse the
	// run again so the result is a fixed point of Normalize.
	s = reDotRun.ReplaceAllString(s, " ")
	s = reSpaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Words splits normalized text into its whitespace-delimited words. The
// input is assumed to already be normalized, so a plain split suffices.
func Words(normalized string) []string {
	return strings.Fields(normalized)
}
