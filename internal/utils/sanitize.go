package utils

import (
	"strings"
	"unicode"
)

// maxLoggedValueLen bounds how much of an untrusted payload value is ever
// echoed into a log line or response body.
const maxLoggedValueLen = 256

// SanitizeForLog strips control characters from an untrusted value so it
// cannot forge log lines or emit terminal escapes, and truncates it.
func SanitizeForLog(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)

	if len(cleaned) > maxLoggedValueLen {
		cleaned = cleaned[:maxLoggedValueLen]
	}

	return cleaned
}
