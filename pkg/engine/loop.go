package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/levelup-tools/levelup/pkg/compiler"
	"github.com/levelup-tools/levelup/pkg/errorkinds"
	"github.com/levelup-tools/levelup/pkg/gitutil"
	"github.com/levelup-tools/levelup/pkg/refactor"
	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/validator"
	"github.com/levelup-tools/levelup/pkg/worktree"
)

// runMod drains plans, dispatching to the batched or sequential iteration
// strategy depending on configuration.
func (e *Engine) runMod(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index, comp compiler.Compiler, plans iter.Seq2[*refactor.Plan, error]) ([]string, []string, []FileValidation, error) {
	if e.EnableBatching {
		return e.runWithBatching(ctx, wt, idx, comp, plans)
	}
	return e.runSequential(ctx, wt, idx, comp, plans)
}

// runSequential applies and validates each plan from the mod stream one at
// a time: precondition failures are silent skips, validation failures
// roll back just that one commit, and a repository-corruption error aborts
// the whole request (anything else localizes to the one candidate).
func (e *Engine) runSequential(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index, comp compiler.Compiler, plans iter.Seq2[*refactor.Plan, error]) ([]string, []string, []FileValidation, error) {
	var accepted, rejected []string
	var results []FileValidation

	for plan, genErr := range plans {
		if ctx.Err() != nil {
			break
		}
		if genErr != nil {
			return accepted, rejected, results, genErr
		}

		a, r, fv, err := e.applySingle(ctx, wt, idx, comp, plan)
		if err != nil {
			return accepted, rejected, results, err
		}
		accepted = append(accepted, a...)
		rejected = append(rejected, r...)
		results = append(results, fv...)
	}
	return accepted, rejected, results, nil
}

// applySingle applies one plan and, if it produced a commit, validates and
// keeps-or-rolls-back that commit. It returns at most one accepted or one
// rejected message.
func (e *Engine) applySingle(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index, comp compiler.Compiler, plan *refactor.Plan) ([]string, []string, []FileValidation, error) {
	commit, err := plan.Refactoring.Apply(ctx, wt, idx)
	if err != nil {
		if errors.Is(err, errorkinds.ErrRepositoryCorrupt) {
			return nil, nil, nil, err
		}
		log.Printf("refactoring apply failed, rejecting candidate: description=%q error=%v", plan.Description, err)
		return nil, []string{fmt.Sprintf("%s (apply failed: %v)", plan.Description, err)}, nil, nil
	}
	if commit == nil {
		// Precondition mismatch: "not applicable", silently skipped.
		return nil, nil, nil, nil
	}

	passed, results, err := e.validateCommit(ctx, wt, comp, commit)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, f := range commit.Files {
		idx.InvalidateFile(f)
	}
	if passed {
		return []string{commit.Message}, nil, results, nil
	}

	if err := wt.ResetHard(ctx, commit.Hash+"~1"); err != nil {
		return nil, nil, nil, err
	}
	return nil, []string{commit.Message}, results, nil
}

// validateCommit compiles every file commit touched at the commit's
// declared validator's optimization level, once against the pre-commit
// content and once against the post-commit content, and compares.
func (e *Engine) validateCommit(ctx context.Context, wt *worktree.Worktree, comp compiler.Compiler, commit *refactor.GitCommit) (bool, []FileValidation, error) {
	val, err := e.Validators.Get(commit.Validator)
	if err != nil {
		return false, nil, fmt.Errorf("%w: %v", errorkinds.ErrInvariantViolation, err)
	}

	allPass := true
	var results []FileValidation
	baseRef := commit.Hash + "~1"
	for _, f := range commit.Files {
		passed, err := e.validateFileAgainstRef(ctx, wt, comp, val, f, baseRef)
		if err != nil {
			return false, nil, err
		}
		results = append(results, FileValidation{File: f, Passed: passed})
		if !passed {
			allPass = false
		}
	}
	return allPass, results, nil
}

// validateFileAgainstRef materializes file's content at baseRef, compiles
// it as the baseline, restores the current (post-change) content, compiles
// it as the candidate, and compares. A compiler invocation that fails to
// produce assembly is treated as a validation failure, per §4.4 ("callers
// treat these as refactoring rejections, not engine errors"), not a hard
// error — only a worktree operation failing is escalated.
func (e *Engine) validateFileAgainstRef(ctx context.Context, wt *worktree.Worktree, comp compiler.Compiler, val validator.Validator, file, baseRef string) (bool, error) {
	level := val.OptimizationLevel()

	if err := wt.CheckoutFileFromRef(ctx, baseRef, file); err != nil {
		return false, err
	}
	baseline, compileErr := e.compileFile(ctx, wt, comp, file, level)
	if err := wt.CheckoutFile(ctx, file); err != nil {
		return false, err
	}
	if compileErr != nil {
		log.Printf("baseline compile failed, rejecting: file=%s error=%v", file, compileErr)
		return false, nil
	}

	candidate, compileErr := e.compileFile(ctx, wt, comp, file, level)
	if compileErr != nil {
		log.Printf("candidate compile failed, rejecting: file=%s error=%v", file, compileErr)
		return false, nil
	}

	if !baseline.Succeeded() || !candidate.Succeeded() {
		return false, nil
	}
	return val.Validate(baseline.AsmText, candidate.AsmText), nil
}

// runCommit implements the COMMIT dispatch path (§4.8 step 3): the
// user-supplied hash is cherry-picked onto the current (atomic) branch and
// validated as a single degenerate refactoring at asm_o0, across every
// translation unit the cherry-pick touched.
func (e *Engine) runCommit(ctx context.Context, wt *worktree.Worktree, idx *symbols.Index, comp compiler.Compiler, hash string) ([]string, []string, []FileValidation, error) {
	if !gitutil.IsHexString(hash) {
		return nil, nil, nil, fmt.Errorf("commit dispatch: %q is not a valid commit hash", hash)
	}

	baseHash, err := wt.GetCommitHash(ctx, "HEAD")
	if err != nil {
		return nil, nil, nil, err
	}

	message := fmt.Sprintf("cherry-pick %s", hash)
	if err := wt.CherryPick(ctx, hash); err != nil {
		log.Printf("cherry-pick failed, rejecting: hash=%s error=%v", hash, err)
		if resetErr := wt.ResetHard(ctx, baseHash); resetErr != nil {
			return nil, nil, nil, resetErr
		}
		return nil, []string{message}, nil, nil
	}

	newHash, err := wt.GetCommitHash(ctx, "HEAD")
	if err != nil {
		return nil, nil, nil, err
	}
	changedFiles, err := wt.ChangedFiles(ctx, newHash)
	if err != nil {
		return nil, nil, nil, err
	}

	commit := &refactor.GitCommit{
		Worktree:  wt,
		Message:   message,
		Hash:      newHash,
		Validator: "asm_o0",
		Files:     changedFiles,
	}

	passed, results, err := e.validateCommit(ctx, wt, comp, commit)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, f := range changedFiles {
		idx.InvalidateFile(f)
	}
	if passed {
		return []string{message}, nil, results, nil
	}

	if err := wt.ResetHard(ctx, baseHash); err != nil {
		return nil, nil, nil, err
	}
	for _, f := range changedFiles {
		idx.InvalidateFile(f)
	}
	return nil, []string{message}, results, nil
}
