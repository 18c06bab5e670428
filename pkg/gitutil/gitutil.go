package gitutil

import "strings"

// IsAuthError checks if a git subprocess error message indicates an
// authentication issue against the remote (missing or invalid credentials),
// as opposed to a network, corruption, or merge-conflict failure.
func IsAuthError(errMsg string) bool {
	lowerMsg := strings.ToLower(errMsg)
	return strings.Contains(lowerMsg, "authentication") ||
		strings.Contains(lowerMsg, "could not read username") ||
		strings.Contains(lowerMsg, "could not read password") ||
		strings.Contains(lowerMsg, "not logged into") ||
		strings.Contains(lowerMsg, "unauthorized") ||
		strings.Contains(lowerMsg, "forbidden") ||
		strings.Contains(lowerMsg, "permission denied")
}

// IsHexString checks if a string contains only hexadecimal characters
// This is used to validate Git commit SHAs and other hexadecimal identifiers
func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
