// Package repoutil provides utility functions for deriving a repository's
// identity from an arbitrary git remote URL. Unlike the teacher's
// GitHub-specific variant, the engine clones user-specified remotes of any
// origin (§1), so name extraction works on SSH and HTTPS URLs generically
// rather than assuming github.com.
package repoutil

import (
	"fmt"
	"strings"
)

// ExtractRepoName derives the repository's extracted name from a git remote
// URL: the last path segment, with a trailing ".git" suffix removed.
//
// Examples:
//
//	ExtractRepoName("https://github.com/acme/widgets.git") // "widgets"
//	ExtractRepoName("git@example.com:team/project.git")    // "project"
//	ExtractRepoName("/srv/git/legacy-app")                 // "legacy-app"
func ExtractRepoName(url string) (string, error) {
	trimmed := strings.TrimRight(url, "/")
	if trimmed == "" {
		return "", fmt.Errorf("empty repository URL")
	}

	// Normalize SCP-like SSH syntax (user@host:path) to a plain path so the
	// final segment can be extracted the same way as an HTTPS URL.
	if idx := strings.Index(trimmed, ":"); idx != -1 && !strings.Contains(trimmed[:idx], "/") {
		trimmed = trimmed[idx+1:]
	}

	parts := strings.Split(trimmed, "/")
	last := parts[len(parts)-1]
	last = strings.TrimSuffix(last, ".git")
	if last == "" {
		return "", fmt.Errorf("could not derive repository name from URL: %s", url)
	}
	return last, nil
}

// SanitizeForFilename converts an identifier into a filename-safe string by
// replacing path separators with hyphens. Returns "clone-mode" if empty.
func SanitizeForFilename(slug string) string {
	if slug == "" {
		return "clone-mode"
	}
	return strings.ReplaceAll(slug, "/", "-")
}
