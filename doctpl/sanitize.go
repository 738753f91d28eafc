package doctpl

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var lineBreak = regexp.MustCompile(` ?\r?\n`)

// Sanitize makes text drawable with the single-byte core fonts. It removes
// U+0002, replaces characters outside Latin-1 with their compatibility
// decomposition when that decomposition is Latin-1 (dropping them
// otherwise), and writes every line break as " \n".
//
// Sanitize is idempotent, and Latin-1 text only has its line breaks changed.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\u0002", "")
	s = toLatin1(s)
	return lineBreak.ReplaceAllString(s, " \n")
}

// SanitizeValue sanitizes strings and returns any other value unchanged.
func SanitizeValue(v any) any {
	if s, ok := v.(string); ok {
		return Sanitize(s)
	}
	return v
}

func toLatin1(s string) string {
	if isLatin1(s) {
		return s
	}
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= 0xFF {
			b.WriteRune(r)
			continue
		}
		for _, d := range norm.NFKD.String(string(r)) {
			if d <= 0xFF {
				b.WriteRune(d)
			}
		}
	}
	return b.String()
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}
