package refactor

import (
	"os"
	"path/filepath"
	"strings"
)

// qualifierValidator maps a C++ function qualifier to the validator id
// that must confirm equivalence after it changes (§4.6's reference table);
// addQualifierProbability below holds the probability declared for each.
//
// The semantic set changes optimizer-visible behavior (const/noexcept/
// constexpr enable different codegen paths; inline affects what the
// optimizer is permitted to assume) so must survive optimization (asm_o3).
// The non-semantic set only affects overload resolution or diagnostics,
// never codegen, so unoptimized comparison (asm_o0) suffices.
var qualifierValidator = map[string]string{
	"const":     "asm_o3",
	"noexcept":  "asm_o3",
	"constexpr": "asm_o3",
	"inline":    "asm_o3",

	"override":         "asm_o0",
	"final":            "asm_o0",
	"static":           "asm_o0",
	"virtual":          "asm_o0",
	"[[nodiscard]]":    "asm_o0",
	"[[maybe_unused]]": "asm_o0",
}

var addQualifierProbability = map[string]float64{
	"const":     0.9,
	"noexcept":  0.9,
	"constexpr": 0.85,
	"inline":    0.85,

	"override":         0.95,
	"final":            0.95,
	"static":           0.8,
	"virtual":          0.7,
	"[[nodiscard]]":    0.95,
	"[[maybe_unused]]": 0.95,
}

const removeQualifierProbability = 0.9

func validatorFor(qualifier string) string {
	if v, ok := qualifierValidator[qualifier]; ok {
		return v
	}
	return "asm_o0"
}

// readSourceLines reads path under repoRoot and returns its lines split on
// "\n", preserving the file's own line endings within each line.
func readSourceLines(repoRoot, path string) ([]string, string, error) {
	full := filepath.Join(repoRoot, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", err
	}
	return strings.Split(string(data), "\n"), full, nil
}

func writeSourceLines(fullPath string, lines []string) error {
	return os.WriteFile(fullPath, []byte(strings.Join(lines, "\n")), 0o644)
}

// declarationLineIndex returns the 0-based index into lines of the
// declaration line for a symbol whose Doxygen-reported start line is
// oneBasedLine, or false when that line lies outside lines.
func declarationLineIndex(lines []string, oneBasedLine int) (int, bool) {
	idx := oneBasedLine - 1
	if idx < 0 || idx >= len(lines) {
		return 0, false
	}
	return idx, true
}

// isDeclarationOrOneLinerDefinition reports whether trimmed is a line this
// package's refactorings are willing to rewrite a qualifier on: either a
// bare declaration ("...;") or a one-line function definition whose whole
// body lives on the same line ("...{...}"), the shape spec.md's
// `inline int g(){return 1;}` example names explicitly. Doxygen reports
// both forms at the same StartLine, so declarationLineIndex can't tell
// them apart on its own.
func isDeclarationOrOneLinerDefinition(trimmed string) bool {
	if strings.HasSuffix(trimmed, ";") {
		return true
	}
	return strings.HasSuffix(trimmed, "}") && strings.Contains(trimmed, "{")
}
