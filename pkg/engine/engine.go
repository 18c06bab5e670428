// Package engine implements the refactoring engine (mod processor, §4.8):
// given one Request it prepares a repository worktree, loads a fresh
// symbol index, walks a Mod's lazy refactoring stream (or cherry-picks a
// single commit), validates each candidate by compiling before/after and
// comparing normalized assembly, and finalizes by squash-merging whatever
// was accepted onto the fixed work branch. A request is processed entirely
// sequentially — no internal parallelism — so rollback stays simple and
// deterministic.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/levelup-tools/levelup/pkg/compiler"
	"github.com/levelup-tools/levelup/pkg/constants"
	"github.com/levelup-tools/levelup/pkg/logger"
	"github.com/levelup-tools/levelup/pkg/mod"
	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/validator"
	"github.com/levelup-tools/levelup/pkg/worktree"
)

var log = logger.New("engine")

// Engine wires together every component a request needs. One Engine is
// shared across requests; all the state it touches per request (worktree,
// symbol index, atomic branch) is created fresh inside Process.
type Engine struct {
	Workspace  string
	Extractor  symbols.Extractor
	Compilers  *compiler.Registry
	CompilerID string
	Validators *validator.Registry
	Mods       *mod.Registry

	// EnableBatching turns on the optional compile-count optimization
	// described in §4.8; when false (the default) every refactoring is
	// applied and validated individually.
	EnableBatching bool
	// BatchThreshold is the cumulative-probability threshold a run of
	// candidates must clear before they're applied and validated as one
	// unit. Ignored unless EnableBatching is set.
	BatchThreshold float64
}

// New returns an Engine with BatchThreshold defaulted to the spec's
// suggested 0.8.
func New(workspace string, extractor symbols.Extractor, compilerID string, compilers *compiler.Registry, validators *validator.Registry, mods *mod.Registry) *Engine {
	return &Engine{
		Workspace:      workspace,
		Extractor:      extractor,
		Compilers:      compilers,
		CompilerID:     compilerID,
		Validators:     validators,
		Mods:           mods,
		BatchThreshold: 0.8,
	}
}

// Process runs the full lifecycle for req and always returns an Outcome;
// it never returns a Go error itself; engine-level failures (repository
// corruption, an internal invariant violated) are reported as
// StatusError inside the Outcome, following §7's recovery rule that
// anything localizable to one refactoring must not abort the whole
// request, but anything that isn't localizable aborts with best-effort
// cleanup.
func (e *Engine) Process(ctx context.Context, req Request) Outcome {
	comp, err := e.Compilers.Get(e.CompilerID)
	if err != nil {
		return errorOutcome(fmt.Sprintf("no compiler configured: %v", err))
	}

	wt, err := worktree.New(e.Workspace, req.RepoURL)
	if err != nil {
		return errorOutcome(fmt.Sprintf("invalid repository: %v", err))
	}
	wt.PostCheckoutCmd = req.PostCheckoutCmd

	// 1. Prepare.
	if err := wt.EnsureCloned(ctx); err != nil {
		return errorOutcome(fmt.Sprintf("clone failed: %v", err))
	}
	if err := wt.Pull(ctx); err != nil {
		log.Printf("pull failed, continuing with stale clone: request=%s error=%v", req.ID, err)
	}
	if err := wt.PrepareWorkBranch(ctx); err != nil {
		return errorOutcome(fmt.Sprintf("prepare_work_branch failed: %v", err))
	}

	// 2. Ensure symbols. The index is instantiated fresh per request
	// (§3), so a full load is always correct; there's no cross-request
	// staleness to guard against.
	idx := symbols.NewIndex(e.Extractor, wt.Path)
	if err := idx.LoadFromDoxygen(ctx); err != nil {
		return errorOutcome(fmt.Sprintf("symbol extraction failed: %v", err))
	}

	// 4. Atomic branch, created ahead of dispatch so both the BUILTIN and
	// COMMIT paths share one rollback/finalize mechanism.
	atomicBranch := constants.AtomicBranchName(req.ID)
	if err := wt.CreateAtomicBranch(ctx, constants.WorkBranch, atomicBranch); err != nil {
		return errorOutcome(fmt.Sprintf("create_atomic_branch failed: %v", err))
	}

	var (
		accepted []string
		rejected []string
		results  []FileValidation
	)

	switch req.Type {
	case SourceCommit:
		a, r, fr, err := e.runCommit(ctx, wt, idx, comp, req.CommitHash)
		if err != nil {
			e.cleanupAtomic(ctx, wt, atomicBranch)
			return errorOutcome(fmt.Sprintf("commit dispatch failed: %v", err))
		}
		accepted, rejected, results = a, r, fr

	default: // SourceBuiltin
		m, ok := e.Mods.Get(req.ModID)
		if !ok {
			e.cleanupAtomic(ctx, wt, atomicBranch)
			return errorOutcome(fmt.Sprintf("unknown mod id %q", req.ModID))
		}
		a, r, fr, err := e.runMod(ctx, wt, idx, comp, m.Generate(ctx, idx))
		if err != nil {
			e.cleanupAtomic(ctx, wt, atomicBranch)
			return errorOutcome(fmt.Sprintf("refactoring loop failed: %v", err))
		}
		accepted, rejected, results = a, r, fr
	}

	// 6. Finalize. A request cancelled in flight still finalizes whatever it
	// accepted, so the git operations below ignore the cancellation.
	cancelled := ctx.Err() != nil
	ctx = context.WithoutCancel(ctx)
	if len(accepted) > 0 {
		if err := wt.CheckoutBranch(ctx, constants.WorkBranch, false); err != nil {
			return errorOutcome(fmt.Sprintf("finalize: checkout work branch failed: %v", err))
		}
		if err := wt.SquashAndRebase(ctx, atomicBranch, constants.WorkBranch); err != nil {
			return errorOutcome(fmt.Sprintf("finalize: squash_and_rebase failed: %v", err))
		}
		if err := wt.DeleteBranch(ctx, atomicBranch, true); err != nil {
			log.Printf("finalize: stale atomic branch delete failed: request=%s error=%v", req.ID, err)
		}
		if err := wt.Push(ctx, constants.WorkBranch); err != nil {
			return errorOutcome(fmt.Sprintf("finalize: push failed: %v", err))
		}
	} else {
		e.cleanupAtomic(ctx, wt, atomicBranch)
	}

	out := e.finalOutcome(req, accepted, rejected, results)
	if cancelled && out.Status == StatusSuccess {
		out.Status = StatusPartial
		out.Message += " (cancelled)"
	}
	return out
}

// finalOutcome derives status from the accepted/rejected sets, collapsing
// §4.8 step 7's rule and §8's empty-stream boundary case into one
// expression: nothing accepted is always a failure (whether or not
// anything was rejected, including zero candidates at all); a mix of both
// is partial; only accepted and nothing rejected is success.
func (e *Engine) finalOutcome(req Request, accepted, rejected []string, results []FileValidation) Outcome {
	var status Status
	var message string
	switch {
	case len(accepted) == 0:
		status = StatusFailed
		message = fmt.Sprintf("no refactorings accepted (%d rejected)", len(rejected))
	case len(rejected) == 0:
		status = StatusSuccess
		message = fmt.Sprintf("%d refactorings accepted", len(accepted))
	default:
		status = StatusPartial
		message = fmt.Sprintf("%d accepted, %d rejected", len(accepted), len(rejected))
	}
	return Outcome{
		Status:            status,
		Message:           message,
		Accepted:          accepted,
		Rejected:          rejected,
		ValidationResults: results,
	}
}

func (e *Engine) cleanupAtomic(ctx context.Context, wt *worktree.Worktree, atomicBranch string) {
	if err := wt.CheckoutBranch(ctx, constants.WorkBranch, false); err != nil {
		log.Printf("cleanup: checkout work branch failed: error=%v", err)
		return
	}
	if err := wt.DeleteBranch(ctx, atomicBranch, true); err != nil {
		log.Printf("cleanup: delete atomic branch failed: branch=%s error=%v", atomicBranch, err)
	}
}

func errorOutcome(message string) Outcome {
	return Outcome{Status: StatusError, Message: message}
}

// compileFile compiles repo-relative path at level with comp; any prelude
// force-include is configured on comp itself.
func (e *Engine) compileFile(ctx context.Context, wt *worktree.Worktree, comp compiler.Compiler, path string, level int) (compiler.Result, error) {
	return comp.CompileFile(ctx, filepath.Join(wt.Path, path), level)
}
