package utils

import (
	"html"
	"strings"
	"unicode"
)

// SanitizeString trims whitespace, strips control characters and escapes
// HTML entities. Applied to device-reported and admin-edited free-text
// fields before they are stored.
func SanitizeString(input string) string {
	trimmed := strings.TrimSpace(input)
	cleaned := removeControlChars(trimmed)

	return html.EscapeString(cleaned)
}

func removeControlChars(input string) string {
	var result strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}

	return result.String()
}
