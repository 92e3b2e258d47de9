package utils

import (
	"html"
	"net/mail"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeString strips markup and trims surrounding whitespace.
func SanitizeString(input string) string {
	return html.UnescapeString(strictPolicy.Sanitize(strings.TrimSpace(input)))
}

// SanitizeEmail lowercases, trims and strips markup so lookups are case-insensitive.
func SanitizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	email = SanitizeString(email)
	return removeControlChars(email)
}

// SanitizeToken drops whitespace that mail clients tend to insert when links wrap.
func SanitizeToken(value string) string {
	var result strings.Builder
	for _, r := range value {
		if !unicode.IsSpace(r) && unicode.IsPrint(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func removeControlChars(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
