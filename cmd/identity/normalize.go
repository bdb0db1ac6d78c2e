package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName trims surrounding whitespace from a display name.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}
