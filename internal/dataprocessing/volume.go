package dataprocessing

import "strconv"

// ParseVolume extracts the first numeric token of s: a run of ASCII digits,
// optionally followed by a '.' and more digits. Signs, exponents, thousands
// separators and non-ASCII digits are not part of a token, so "-2.5 m³"
// yields 2.5 and "1,200 m³" yields 1. ok is false when s has no digit.
func ParseVolume(s string) (value float64, ok bool) {
	start := -1
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	end := start
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && isDigit(s[end]) {
			end++
		}
	}

	value, err := strconv.ParseFloat(s[start:end], 64)
	if err != nil {
		// only reachable on overflow
		return 0, false
	}
	return value, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
