package logutil

import (
	"strings"
	"unicode"
)

// SanitizeForLog flattens host names and other externally sourced strings
// before they reach the log, so a crafted value cannot forge extra lines.
// Line breaks and tabs become spaces; remaining control characters are dropped.
func SanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeAll applies SanitizeForLog to every element and joins the result
// with ", ".
func SanitizeAll(values []string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = SanitizeForLog(v)
	}
	return strings.Join(out, ", ")
}
