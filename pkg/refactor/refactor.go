// Package refactor defines the refactoring contract and the two reference
// refactorings (AddFunctionQualifier, RemoveFunctionQualifier). A
// refactoring checks its own preconditions against the symbol index and
// source text, mutates files in place, invalidates the index, and commits
// — returning a GitCommit descriptor, or nil when its preconditions weren't
// met (never an error for that case; "not applicable" is a normal outcome).
package refactor

import (
	"context"

	"github.com/levelup-tools/levelup/pkg/logger"
	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/worktree"
)

var log = logger.New("refactor")

// GitCommit describes one accepted refactoring commit (§3's "Refactoring
// commit descriptor"). It is a value object; its lifetime ends at squash
// or rollback, both driven through Worktree.
type GitCommit struct {
	Worktree        *worktree.Worktree
	Message         string
	Hash            string
	Validator       string
	AffectedSymbols []string
	// Files lists the repo-relative paths this commit touched. The engine
	// uses it to know what to compile for validation without having had to
	// guess the refactoring's target file ahead of Apply.
	Files       []string
	Probability float64
}

// Plan pairs a ready-to-apply Refactoring with a human-readable
// description, the unit a Mod yields from its lazy generation sequence.
// Concrete Refactoring values already carry their own target parameters
// (symbol, qualifier, ...) as struct fields, so Plan needs nothing more.
type Plan struct {
	Refactoring Refactoring
	Description string
}

// Refactoring is the abstract contract every concrete refactoring
// implements. Concrete types carry their own target parameters (symbol,
// qualifier, ...) as struct fields set at construction time.
type Refactoring interface {
	// Apply attempts the refactoring against wt/idx. A nil, nil return
	// means the preconditions weren't met; the caller moves on. A non-nil
	// GitCommit means the change was made, the index invalidated for every
	// touched file, and the result committed on wt's current branch.
	Apply(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index) (*GitCommit, error)
}

// Probabilistic is implemented by refactorings that can report their
// declared success probability before being applied (the reference
// qualifier refactorings both do). The batching optimization in the engine
// uses this to group candidates by cumulative confidence; a refactoring
// that doesn't implement it is simply never batched.
type Probabilistic interface {
	Probability() float64
}

// Validated is implemented by refactorings that can report which
// validator id their commit will declare before being applied, so the
// batching optimization only groups candidates bound for the same
// compiler optimization level.
type Validated interface {
	ValidatorID() string
}

// commitOrSkip stages and commits message, invalidating path in idx first.
// Returns nil, nil if nothing ended up staged — the mutation turned out to
// be a no-op (e.g. the qualifier was already present in a form the
// precondition check didn't catch).
func commitOrSkip(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index, path, message, validatorID string, affected []string, probability float64) (*GitCommit, error) {
	idx.InvalidateFile(path)

	committed, err := wt.Commit(ctx, message)
	if err != nil {
		return nil, err
	}
	if !committed {
		log.Printf("refactoring produced no diff, skipping: %s", message)
		return nil, nil
	}

	hash, err := wt.GetCommitHash(ctx, "HEAD")
	if err != nil {
		return nil, err
	}

	return &GitCommit{
		Worktree:        wt,
		Message:         message,
		Hash:            hash,
		Validator:       validatorID,
		AffectedSymbols: affected,
		Files:           []string{path},
		Probability:     probability,
	}, nil
}
