// Package util provides small internal helpers shared across packages.
package util

// SafeTruncate safely truncates a string to maxLen characters without
// panicking. Used when logging prefixes of sensitive values such as
// authorization codes and tokens.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
