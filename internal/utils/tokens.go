package utils

import "unicode/utf8"

// charsPerToken is the rough ratio used for prompt budgeting.
const charsPerToken = 4

// CountTokens estimates prompt size, rounding up so any non-empty text is at
// least one token.
func CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// TruncateToTokenLimit cuts text to about limit tokens.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	max := limit * charsPerToken
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}
