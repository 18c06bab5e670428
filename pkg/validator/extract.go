package validator

import (
	"regexp"
	"strings"
)

// function is one extracted top-level PROC/ENDP block.
type function struct {
	name   string
	body   []string // raw lines between the PROC and ENDP delimiters, leading whitespace stripped
	comdat bool      // true if a preceding COMDAT directive/comment named this function
}

var (
	procRe   = regexp.MustCompile(`^(\S+)\s+PROC\b`)
	endpRe   = regexp.MustCompile(`^(\S+)\s+ENDP\b`)
	comdatRe = regexp.MustCompile(`(?i)COMDAT`)
)

// extractFunctions scans asm for top-level `NAME PROC` ... `NAME ENDP`
// blocks. Nested labels that aren't themselves PROC/ENDP delimiters are
// left inside the body untouched — they're not functions in their own
// right.
func extractFunctions(asm string) map[string]function {
	funcs := make(map[string]function)
	lines := strings.Split(asm, "\n")

	var current *function
	var pendingComdat bool

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if current == nil {
			if comdatRe.MatchString(trimmed) {
				pendingComdat = true
				continue
			}
			if m := procRe.FindStringSubmatch(trimmed); m != nil {
				current = &function{name: m[1], comdat: pendingComdat}
				pendingComdat = false
				continue
			}
			pendingComdat = false
			continue
		}

		if m := endpRe.FindStringSubmatch(trimmed); m != nil && m[1] == current.name {
			funcs[current.name] = *current
			current = nil
			continue
		}

		current.body = append(current.body, strings.TrimLeft(line, " \t"))
	}

	return funcs
}
