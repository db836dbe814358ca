package service

import (
	"strconv"
	"strings"
	"unicode"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseUF accepts exactly two alphabetic characters after stripping
// spaces, returning the uppercased state code.
func parseUF(text string) (string, bool) {
	uf := strings.ToUpper(strings.ReplaceAll(text, " ", ""))
	if len([]rune(uf)) != 2 {
		return "", false
	}
	for _, r := range uf {
		if !unicode.IsLetter(r) {
			return "", false
		}
	}
	return uf, true
}

// parseBedrooms concatenates every digit in the text into one integer;
// text with no digits is rejected.
func parseBedrooms(text string) (int, bool) {
	var digits strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePrice accepts "A-B" ranges, "ate N"/"até N" for a max-only bound
// and a bare number meaning min == max. Anything else yields no bounds.
func parsePrice(text string) (*float64, *float64) {
	t := normalize(text)
	t = strings.ReplaceAll(t, "r$", "")
	t = strings.ReplaceAll(t, " ", "")

	if strings.Contains(t, "-") {
		parts := strings.SplitN(t, "-", 2)
		minVal, errMin := strconv.ParseFloat(parts[0], 64)
		maxVal, errMax := strconv.ParseFloat(parts[1], 64)
		if errMin != nil || errMax != nil {
			return nil, nil
		}
		return &minVal, &maxVal
	}

	for _, prefix := range []string{"até", "ate"} {
		if strings.HasPrefix(t, prefix) {
			maxVal, err := strconv.ParseFloat(strings.TrimPrefix(t, prefix), 64)
			if err != nil {
				return nil, nil
			}
			return nil, &maxVal
		}
	}

	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil, nil
	}
	return &v, &v
}

// formatPrice renders a price with thousands separators and no decimals
// (1234567.8 -> "1.234.568").
func formatPrice(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out.WriteRune('.')
		}
		out.WriteRune(r)
	}
	if neg {
		return "-" + out.String()
	}
	return out.String()
}
