package rules

import (
	"strconv"
	"strings"
)

// ParseAmount converts a monetary-looking string ("42.50", "1,234.56",
// "12,50") into a number. The last separator followed by exactly two digits
// is treated as the decimal point; every other separator is a thousands mark.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 == 2 {
		s = dropSeparators(s[:i]) + "." + s[i+1:]
	} else {
		s = dropSeparators(s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func dropSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s)
}
