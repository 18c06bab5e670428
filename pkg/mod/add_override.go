package mod

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/levelup-tools/levelup/pkg/refactor"
	"github.com/levelup-tools/levelup/pkg/symbols"
)

// AddOverride yields an AddFunctionQualifier(symbol, "override") plan for
// every member function symbol whose prototype carries virtual but lacks
// override.
type AddOverride struct{}

func (AddOverride) ID() string   { return "add-override" }
func (AddOverride) Name() string { return "Add override to virtual overrides" }

func (AddOverride) Generate(ctx context.Context, idx *symbols.Index) iter.Seq2[*refactor.Plan, error] {
	return func(yield func(*refactor.Plan, error) bool) {
		all, err := idx.GetAllSymbols(ctx, true)
		if err != nil {
			yield(nil, err)
			return
		}

		candidates := make([]symbols.Symbol, 0)
		for _, s := range all {
			if s.Kind != symbols.KindFunction || !s.IsMember {
				continue
			}
			if hasQualifier(s, "virtual") && !hasQualifier(s, "override") {
				candidates = append(candidates, s)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].QualifiedName < candidates[j].QualifiedName
		})

		for _, s := range candidates {
			plan := &refactor.Plan{
				Refactoring: &refactor.AddFunctionQualifier{Symbol: s.QualifiedName, Qualifier: "override"},
				Description: fmt.Sprintf("add override on %s", s.QualifiedName),
			}
			if !yield(plan, nil) {
				return
			}
		}
	}
}
