package validator

import (
	"regexp"
	"sort"
	"strings"

	"github.com/levelup-tools/levelup/pkg/sliceutil"
)

var (
	labelRe = regexp.MustCompile(`\$L[LN]\d+@[\w$.]*|\bL\d+\b`)
	dataRe  = regexp.MustCompile(`\[rip\s*\+\s*[^\]]*\]|OFFSET\s+\S+|\$SG\d+`)

	commentRe = regexp.MustCompile(`;.*$`)
)

// alignmentDirectives names the assembler directives that carry no
// semantic content of their own (padding, linker hints) and are dropped
// before comparison rather than normalized.
var alignmentDirectives = []string{"ALIGN", "ORG", "INCLUDELIB", "NOP"}

// isAlignmentDirective reports whether trimmed opens with one of
// alignmentDirectives, matched as a whole token, case-insensitively.
func isAlignmentDirective(trimmed string) bool {
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return false
	}
	return sliceutil.Contains(alignmentDirectives, strings.ToUpper(fields[0]))
}

// normalizeBody rewrites body per §4.5's algorithm and returns the
// resulting non-empty, whitespace-collapsed lines.
func normalizeBody(body []string, symbolTable map[string]struct{}) []string {
	symbolRe := buildSymbolRegexp(symbolTable)

	var out []string
	for _, line := range body {
		stripped := commentRe.ReplaceAllString(line, "")
		trimmed := strings.TrimSpace(stripped)
		if trimmed == "" {
			continue
		}
		if isAlignmentDirective(trimmed) {
			continue
		}

		rewritten := trimmed
		if symbolRe != nil {
			rewritten = symbolRe.ReplaceAllString(rewritten, "SYMBOL")
		}
		rewritten = dataRe.ReplaceAllString(rewritten, "DATA")
		rewritten = labelRe.ReplaceAllString(rewritten, "LABEL")
		rewritten = strings.Join(strings.Fields(rewritten), " ")

		if rewritten == "" {
			continue
		}
		out = append(out, rewritten)
	}
	return out
}

// buildSymbolRegexp compiles an alternation of every known symbol name,
// longest first so a shorter name that happens to be a prefix of a longer
// one never shadows it.
func buildSymbolRegexp(symbolTable map[string]struct{}) *regexp.Regexp {
	if len(symbolTable) == 0 {
		return nil
	}
	names := make([]string, 0, len(symbolTable))
	for name := range symbolTable {
		names = append(names, regexp.QuoteMeta(name))
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return regexp.MustCompile(`\b(` + strings.Join(names, "|") + `)\b`)
}
