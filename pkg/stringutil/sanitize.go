package stringutil

import (
	"regexp"

	"github.com/levelup-tools/levelup/pkg/logger"
)

var sanitizeLog = logger.New("stringutil:sanitize")

// Regex patterns for detecting potential secret key names
var (
	// Match uppercase snake_case identifiers that look like secret names (e.g., MY_SECRET_KEY, GITHUB_TOKEN, API_KEY)
	// Matches listed in commonDiagnosticKeywords are left unredacted
	secretNamePattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]*_[A-Z0-9_]+)\b`)

	// Match PascalCase identifiers ending with security-related suffixes (e.g., GitHubToken, ApiKey, DeploySecret)
	pascalCaseSecretPattern = regexp.MustCompile(`\b([A-Z][a-z0-9]*(?:[A-Z][a-z0-9]*)*(?:Token|Key|Secret|Password|Credential|Auth))\b`)

	// Common non-sensitive keywords to exclude from redaction: compiler and
	// git diagnostics routinely mention these in all-caps without them ever
	// being secret values.
	commonDiagnosticKeywords = map[string]bool{
		"ENV":          true,
		"PATH":         true,
		"HOME":         true,
		"SHELL":        true,
		"ERROR":        true,
		"WARNING":      true,
		"INCLUDE":      true,
		"INCLUDE_PATH": true,
		"LIB_PATH":     true,
		"GIT_DIR":      true,
		"GIT_WORK_TREE": true,
	}
)

// SanitizeErrorMessage removes potential secret key names from subprocess
// diagnostics (compiler stderr, git stderr) before they are stored in a
// Result message or logged, to avoid leaking environment-derived
// credentials that happened to surface in tool output.
func SanitizeErrorMessage(message string) string {
	if message == "" {
		return message
	}

	sanitizeLog.Printf("Sanitizing error message: length=%d", len(message))

	// Redact uppercase snake_case patterns (e.g., MY_SECRET_KEY, API_TOKEN)
	sanitized := secretNamePattern.ReplaceAllStringFunc(message, func(match string) string {
		// Don't redact common diagnostic keywords
		if commonDiagnosticKeywords[match] {
			return match
		}
		sanitizeLog.Printf("Redacted snake_case secret pattern: %s", match)
		return "[REDACTED]"
	})

	// Redact PascalCase patterns ending with security suffixes (e.g., GitHubToken, ApiKey)
	sanitized = pascalCaseSecretPattern.ReplaceAllString(sanitized, "[REDACTED]")

	if sanitized != message {
		sanitizeLog.Print("Error message sanitization applied redactions")
	}

	return sanitized
}
