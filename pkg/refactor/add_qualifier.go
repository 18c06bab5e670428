package refactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/levelup-tools/levelup/pkg/sliceutil"
	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/worktree"
)

// AddFunctionQualifier inserts Qualifier onto the declaration of Symbol.
// Precondition: the qualifier isn't already present on the line, and the
// line ends with a semicolon (a declaration, not a definition body).
type AddFunctionQualifier struct {
	Symbol    string
	Qualifier string
}

// Probability reports this refactoring's declared success probability
// ahead of applying it, so the engine's batching optimization can group
// candidates by cumulative confidence without having to apply them first.
func (r *AddFunctionQualifier) Probability() float64 {
	if p, ok := addQualifierProbability[r.Qualifier]; ok {
		return p
	}
	return 0.5
}

// ValidatorID reports which validator this qualifier change will declare,
// ahead of applying it.
func (r *AddFunctionQualifier) ValidatorID() string {
	return validatorFor(r.Qualifier)
}

func (r *AddFunctionQualifier) Apply(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index) (*GitCommit, error) {
	sym, ok, err := idx.GetSymbol(ctx, r.Symbol, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	lines, fullPath, err := readSourceLines(wt.Path, sym.File)
	if err != nil {
		return nil, nil
	}

	lineIdx, ok := declarationLineIndex(lines, sym.StartLine)
	if !ok {
		return nil, nil
	}
	line := lines[lineIdx]
	trimmed := strings.TrimRight(line, " \t")

	if !strings.HasSuffix(trimmed, ";") {
		return nil, nil
	}
	body := strings.TrimSuffix(trimmed, ";")
	// Whole-token membership, not substring: "const" must not match inside
	// "constexpr" already present on the line.
	if sliceutil.Contains(strings.Fields(body), r.Qualifier) {
		return nil, nil
	}

	lines[lineIdx] = body + " " + r.Qualifier + ";"

	if err := writeSourceLines(fullPath, lines); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("add %s on %s at %s:%d", r.Qualifier, r.Symbol, sym.File, sym.StartLine)
	return commitOrSkip(ctx, wt, idx, sym.File, message, validatorFor(r.Qualifier), []string{r.Symbol}, addQualifierProbability[r.Qualifier])
}
