package postprocess

import (
	"regexp"
	"strings"
)

// numberRun matches a maximal run of dot-separated digit groups with an
// optional sign. Runs with more than one dot (1.2.3) are version-like and are
// never rounded.
var numberRun = regexp.MustCompile(`[+-]?\d+(?:\.\d+)+`)

// RoundDecimals rounds every decimal number token in text to places fraction
// digits. Ties round half away from zero. The arithmetic is performed on the
// decimal digits of the token, so 1.005 rounds to 1.01 exactly as written.
//
// With places == 0 the token is rendered as a plain integer; otherwise it is
// rendered with exactly places fraction digits.
func RoundDecimals(text string, places int) string {
	if places < 0 {
		return text
	}
	matches := numberRun.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	// right to left keeps earlier offsets valid
	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][0], matches[i][1]
		token := text[start:end]
		if strings.Count(token, ".") != 1 {
			continue
		}
		text = text[:start] + roundToken(token, places) + text[end:]
	}
	return text
}

func roundToken(token string, places int) string {
	negative := false
	switch token[0] {
	case '-':
		negative = true
		token = token[1:]
	case '+':
		token = token[1:]
	}
	intPart, frac, _ := strings.Cut(token, ".")

	var digits []byte
	if len(frac) <= places {
		digits = []byte(intPart + frac + strings.Repeat("0", places-len(frac)))
	} else {
		digits = []byte(intPart + frac[:places])
		if frac[places] >= '5' {
			digits = increment(digits)
		}
	}

	whole := strings.TrimLeft(string(digits[:len(digits)-places]), "0")
	if whole == "" {
		whole = "0"
	}
	out := whole
	if places > 0 {
		out += "." + string(digits[len(digits)-places:])
	}
	if negative && strings.Trim(out, "0.") != "" {
		out = "-" + out
	}
	return out
}

// increment adds one to a decimal digit string, growing it on overflow.
func increment(digits []byte) []byte {
	for i := len(digits) - 1; i >= 0; i-- {
		if digits[i] < '9' {
			digits[i]++
			return digits
		}
		digits[i] = '0'
	}
	return append([]byte{'1'}, digits...)
}
