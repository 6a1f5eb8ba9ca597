// Package label turns arbitrary scalars into join-safe labels.
package label

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"recon/pkg/table"
)

// NullToken is the label produced for null values.
const NullToken = "nan"

// Normalize converts v into a lowercase, underscore-joined label.
//
// Rules, applied in order:
//   - nil and NaN become NullToken.
//   - The canonical string form (table.FormatValue) is folded to ASCII:
//     accents are stripped, other non-ASCII runes are dropped.
//   - Every run of characters outside [a-z0-9] becomes one separator;
//     leading and trailing separators are removed; parts are joined by "_".
//
// Normalize is total and idempotent on its own output.
func Normalize(v any) string {
	if table.IsNull(v) {
		return NullToken
	}
	return NormalizeString(table.FormatValue(v))
}

// NormalizeString is Normalize for a string input.
func NormalizeString(s string) string {
	s = foldASCII(s)

	var b strings.Builder
	b.Grow(len(s))

	pending := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteByte(c)
			continue
		}
		pending = true
	}
	return b.String()
}

// foldASCII decomposes s, removes combining marks and drops what is left
// outside ASCII.
func foldASCII(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, s)
	}
	return out
}
