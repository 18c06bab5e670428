package mod

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/levelup-tools/levelup/pkg/refactor"
	"github.com/levelup-tools/levelup/pkg/symbols"
)

// RemoveInline yields a RemoveFunctionQualifier(symbol, "inline") plan for
// every function symbol whose prototype carries the inline qualifier.
type RemoveInline struct{}

func (RemoveInline) ID() string   { return "remove-inline" }
func (RemoveInline) Name() string { return "Remove redundant inline qualifiers" }

func (RemoveInline) Generate(ctx context.Context, idx *symbols.Index) iter.Seq2[*refactor.Plan, error] {
	return func(yield func(*refactor.Plan, error) bool) {
		all, err := idx.GetAllSymbols(ctx, true)
		if err != nil {
			yield(nil, err)
			return
		}

		candidates := make([]symbols.Symbol, 0)
		for _, s := range all {
			if s.Kind != symbols.KindFunction {
				continue
			}
			if hasQualifier(s, "inline") {
				candidates = append(candidates, s)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].QualifiedName < candidates[j].QualifiedName
		})

		for _, s := range candidates {
			plan := &refactor.Plan{
				Refactoring: &refactor.RemoveFunctionQualifier{Symbol: s.QualifiedName, Qualifier: "inline"},
				Description: fmt.Sprintf("remove inline on %s", s.QualifiedName),
			}
			if !yield(plan, nil) {
				return
			}
		}
	}
}

func hasQualifier(s symbols.Symbol, qualifier string) bool {
	for _, q := range s.Qualifiers {
		if q == qualifier {
			return true
		}
	}
	return false
}
