package gitutil

import "testing"

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{name: "authentication failed", msg: "fatal: Authentication failed for 'https://example.com/repo.git'", want: true},
		{name: "permission denied ssh", msg: "git@example.com: Permission denied (publickey).", want: true},
		{name: "could not read username", msg: "fatal: could not read Username for 'https://example.com': terminal prompts disabled", want: true},
		{name: "unrelated network error", msg: "fatal: unable to access: Could not resolve host", want: false},
		{name: "merge conflict", msg: "error: Your local changes would be overwritten by merge", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.msg); got != tt.want {
				t.Errorf("IsAuthError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestIsHexString(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want bool
	}{
		{name: "full sha1", s: "a1b2c3d4e5f678901234567890abcdef12345678", want: true},
		{name: "short sha", s: "a1b2c3d", want: true},
		{name: "uppercase hex", s: "ABCDEF0123", want: true},
		{name: "empty", s: "", want: false},
		{name: "non-hex letters", s: "zzzz111", want: false},
		{name: "branch name with slash", s: "feature/foo", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHexString(tt.s); got != tt.want {
				t.Errorf("IsHexString(%q) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}
