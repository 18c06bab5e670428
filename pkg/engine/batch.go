package engine

import (
	"context"
	"fmt"
	"iter"

	"github.com/levelup-tools/levelup/pkg/compiler"
	"github.com/levelup-tools/levelup/pkg/errorkinds"
	"github.com/levelup-tools/levelup/pkg/mathutil"
	"github.com/levelup-tools/levelup/pkg/refactor"
	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/worktree"
)

// maxBatchPlans bounds how many candidates get grouped into one
// validation pass, regardless of how high their declared probabilities
// are; an unbounded window would let one pathological mod turn every
// candidate into a single giant diff-and-compile.
const maxBatchPlans = 8

// batchInfo reports the probability and validator id a refactoring
// declares ahead of being applied, and whether it declares them at all.
// Refactorings that don't implement both optional interfaces are never
// batched — they always go through applySingle alone.
func batchInfo(r refactor.Refactoring) (probability float64, validatorID string, ok bool) {
	p, hasProb := r.(refactor.Probabilistic)
	v, hasValidator := r.(refactor.Validated)
	if !hasProb || !hasValidator {
		return 0, "", false
	}
	return p.Probability(), v.ValidatorID(), true
}

// runWithBatching drains plans into runs of candidates whose cumulative
// declared probability clears BatchThreshold (and which share a validator
// id, so one compile level covers the whole run), applies and validates
// each run as a unit, and bisects on failure. This changes only how many
// times the compiler runs, never which refactorings end up accepted.
func (e *Engine) runWithBatching(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index, comp compiler.Compiler, plans iter.Seq2[*refactor.Plan, error]) ([]string, []string, []FileValidation, error) {
	next, stop := iter.Pull2(plans)
	defer stop()

	var pending *refactor.Plan
	havePending := false

	fetch := func() (*refactor.Plan, error, bool) {
		if havePending {
			p := pending
			pending = nil
			havePending = false
			return p, nil, true
		}
		return next()
	}

	var accepted, rejected []string
	var results []FileValidation

	for {
		if ctx.Err() != nil {
			break
		}
		plan, genErr, ok := fetch()
		if !ok {
			break
		}
		if genErr != nil {
			return accepted, rejected, results, genErr
		}

		prob, vid, batchable := batchInfo(plan.Refactoring)
		if !batchable {
			a, r, fv, err := e.applySingle(ctx, wt, idx, comp, plan)
			if err != nil {
				return accepted, rejected, results, err
			}
			accepted = append(accepted, a...)
			rejected = append(rejected, r...)
			results = append(results, fv...)
			continue
		}

		window := []*refactor.Plan{plan}
		cumProb := prob
		for len(window) < maxBatchPlans {
			next2, genErr2, ok2 := fetch()
			if !ok2 {
				break
			}
			if genErr2 != nil {
				return accepted, rejected, results, genErr2
			}
			prob2, vid2, batchable2 := batchInfo(next2.Refactoring)
			if !batchable2 || vid2 != vid || cumProb*prob2 < e.BatchThreshold {
				pending = next2
				havePending = true
				break
			}
			window = append(window, next2)
			cumProb *= prob2
		}

		a, r, fv, err := e.applyBatch(ctx, wt, idx, comp, window, vid)
		if err != nil {
			return accepted, rejected, results, err
		}
		accepted = append(accepted, a...)
		rejected = append(rejected, r...)
		results = append(results, fv...)
	}
	return accepted, rejected, results, nil
}

// applyBatch applies every plan in window in order, then validates the
// union of files they touched as a single compile-and-compare pass. On
// failure it resets the whole window and bisects: a window of one simply
// rejects, a larger window splits in half and each half is retried
// (including re-applying, since the reset discarded the earlier commits).
// This never changes the accepted set versus validating one at a time —
// worst case it degrades to exactly that.
func (e *Engine) applyBatch(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index, comp compiler.Compiler, window []*refactor.Plan, validatorID string) ([]string, []string, []FileValidation, error) {
	if len(window) == 0 {
		return nil, nil, nil, nil
	}

	baseHash, err := wt.GetCommitHash(ctx, "HEAD")
	if err != nil {
		return nil, nil, nil, err
	}

	var committed []string
	for _, p := range window {
		commit, err := p.Refactoring.Apply(ctx, wt, idx)
		if err != nil {
			log.Printf("batch: apply failed, skipping candidate: description=%q error=%v", p.Description, err)
			continue
		}
		if commit == nil {
			continue
		}
		committed = append(committed, commit.Message)
		for _, f := range commit.Files {
			idx.InvalidateFile(f)
		}
	}
	if len(committed) == 0 {
		return nil, nil, nil, nil
	}

	newHash, err := wt.GetCommitHash(ctx, "HEAD")
	if err != nil {
		return nil, nil, nil, err
	}
	changedFiles, err := wt.ChangedFilesBetween(ctx, baseHash, newHash)
	if err != nil {
		return nil, nil, nil, err
	}

	val, err := e.Validators.Get(validatorID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", errorkinds.ErrInvariantViolation, err)
	}

	allPass := true
	var fileResults []FileValidation
	for _, f := range changedFiles {
		passed, err := e.validateFileAgainstRef(ctx, wt, comp, val, f, baseHash)
		if err != nil {
			return nil, nil, nil, err
		}
		fileResults = append(fileResults, FileValidation{File: f, Passed: passed})
		if !passed {
			allPass = false
		}
	}

	if allPass {
		return committed, nil, fileResults, nil
	}

	if err := wt.ResetHard(ctx, baseHash); err != nil {
		return nil, nil, nil, err
	}
	for _, f := range changedFiles {
		idx.InvalidateFile(f)
	}

	if len(window) == 1 {
		return nil, committed, fileResults, nil
	}

	mid := mathutil.Max(1, mathutil.Min(len(window)-1, len(window)/2))
	a1, r1, fv1, err := e.applyBatch(ctx, wt, idx, comp, window[:mid], validatorID)
	if err != nil {
		return nil, nil, nil, err
	}
	a2, r2, fv2, err := e.applyBatch(ctx, wt, idx, comp, window[mid:], validatorID)
	if err != nil {
		return nil, nil, nil, err
	}
	return append(a1, a2...), append(r1, r2...), append(fv1, fv2...), nil
}
