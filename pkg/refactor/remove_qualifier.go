package refactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/worktree"
)

// RemoveFunctionQualifier deletes Qualifier from the declaration of Symbol.
// Mirror of AddFunctionQualifier; precondition is that the qualifier is
// actually present as a whole word on the declaration line.
type RemoveFunctionQualifier struct {
	Symbol    string
	Qualifier string
}

// Probability reports this refactoring's declared success probability
// ahead of applying it; see AddFunctionQualifier.Probability.
func (r *RemoveFunctionQualifier) Probability() float64 {
	return removeQualifierProbability
}

// ValidatorID reports which validator this qualifier change will declare,
// ahead of applying it.
func (r *RemoveFunctionQualifier) ValidatorID() string {
	return validatorFor(r.Qualifier)
}

func (r *RemoveFunctionQualifier) Apply(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index) (*GitCommit, error) {
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
	// Unlike AddFunctionQualifier, a one-line definition is an accepted
	// target here: spec.md's "remove inline" worked example
	// (`inline int g(){return 1;}`) is exactly this shape, and requiring a
	// trailing ";" would silently skip it as "not applicable".
	if !isDeclarationOrOneLinerDefinition(trimmed) {
		return nil, nil
	}

	fields := strings.Fields(line)
	idxOfQualifier := -1
	for i, f := range fields {
		if f == r.Qualifier {
			idxOfQualifier = i
			break
		}
	}
	if idxOfQualifier == -1 {
		return nil, nil
	}

	leading := strings.Index(line, fields[0])
	indent := ""
	if leading > 0 {
		indent = line[:leading]
	}
	fields = append(fields[:idxOfQualifier], fields[idxOfQualifier+1:]...)
	lines[lineIdx] = indent + strings.Join(fields, " ")

	if err := writeSourceLines(fullPath, lines); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("remove %s on %s at %s:%d", r.Qualifier, r.Symbol, sym.File, sym.StartLine)
	return commitOrSkip(ctx, wt, idx, sym.File, message, validatorFor(r.Qualifier), []string{r.Symbol}, removeQualifierProbability)
}
