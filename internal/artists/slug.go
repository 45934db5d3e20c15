package artists

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slug normalizes an artist name into a filesystem- and URL-safe identifier:
// accents stripped, lowercased, everything but ASCII letters and digits
// removed. The same canonical form is used for page directories and for the
// links the player renders, so it must stay reproducible and idempotent.
func Slug(name string) string {
	// Decompose, drop combining marks, recompose. Chain transformers are
	// stateful, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
