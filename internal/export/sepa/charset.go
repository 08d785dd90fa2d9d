package sepa

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const sepaPunctuation = "/-?:().,'+ "

// Clean folds free text to the SEPA Latin character set: diacritics are
// stripped, anything else outside the set becomes a space and runs of
// spaces collapse.
func Clean(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(sepaPunctuation, r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate cuts an already clean string to n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], " ")
}
