package compare

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a leaf into its comparable string form.
//
//	string -> lowercased, all whitespace removed, then NFC
//	number -> canonical decimal text, no rounding ("100.50" -> "100.5");
//	          magnitudes past 1e±1000 keep a trimmed scientific form ("1e5000")
//	bool   -> "true" / "false"
//	null   -> ""
//
// Punctuation is kept, so "1,000" and "1000" stay distinct.
func Normalize(v Value) string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return canonicalNumber(v.s)
	default:
		return NormalizeString(v.s)
	}
}

// NormalizeString applies the string rule of Normalize. Composition runs
// last so that marks freed by whitespace removal are composed too.
func NormalizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return norm.NFC.String(strings.ToLower(s))
}

// maxExpandedExponent bounds how far a number is written out as plain
// decimal text.
const maxExpandedExponent = 1000

func canonicalNumber(literal string) string {
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return NormalizeString(literal)
	}
	if d.IsZero() {
		return "0"
	}
	digits := d.Coefficient().String()
	trimmed := strings.TrimRight(digits, "0")
	exp := int64(d.Exponent()) + int64(len(digits)-len(trimmed))
	if exp > maxExpandedExponent || exp < -maxExpandedExponent {
		return trimmed + "e" + strconv.FormatInt(exp, 10)
	}
	return d.String()
}
