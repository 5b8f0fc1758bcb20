package signal

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var priceNoise = regexp.MustCompile(`[^\d.-]`)

// CleanPrice strips everything except digits, '.' and '-' and returns the parsed value in
// canonical decimal form, e.g. "$1,234.56" -> "1234.56" and "30000" -> "30000.0".
func CleanPrice(s string) (string, error) {
	cleaned := priceNoise.ReplaceAllString(s, "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) {
		return "", Validation("Unable to parse '%s' as a float.", s)
	}
	return FormatFloat(f), nil
}

// FormatFloat renders f as the shortest string that round-trips, always with a fractional
// part. Magnitudes >= 1e16 or < 1e-4 use exponent notation ("1e+16", "1e-05").
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if f != 0 {
		exp := decimalExponent(f)
		if exp < -4 || exp >= 16 {
			return strconv.FormatFloat(f, 'e', -1, 64)
		}
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// decimalExponent is the base-10 exponent of the shortest representation of f.
func decimalExponent(f float64) int {
	e := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.IndexByte(e, 'e')
	n, _ := strconv.Atoi(e[i+1:])
	return n
}
