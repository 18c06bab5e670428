// Package worktree owns one on-disk git clone and exposes the primitives
// the refactoring engine needs on top of it: clone/pull, branch lifecycle,
// commit, reset, cherry-pick, squash-rebase, push, and single-file
// checkout. Every method shells out through pkg/procrunner; none of them
// touch the filesystem directly except to check for the clone's existence
// and to create its parent directory before cloning.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/levelup-tools/levelup/pkg/constants"
	"github.com/levelup-tools/levelup/pkg/errorkinds"
	"github.com/levelup-tools/levelup/pkg/gitutil"
	"github.com/levelup-tools/levelup/pkg/logger"
	"github.com/levelup-tools/levelup/pkg/procrunner"
	"github.com/levelup-tools/levelup/pkg/ratelimit"
	"github.com/levelup-tools/levelup/pkg/repoutil"
)

var log = logger.New("worktree:git")

const defaultTimeout = 5 * time.Minute

// Worktree wraps a single repository clone, pinned to a fixed work branch.
type Worktree struct {
	// Path is the clone's root directory on disk.
	Path string
	// URL is the remote the clone was (or will be) cloned from.
	URL string
	// PostCheckoutCmd, if non-empty, is run (via sh -c) after
	// PrepareWorkBranch checks out the work branch — e.g. a generator step
	// some repos require after switching branches.
	PostCheckoutCmd string
}

// New returns a Worktree bound to name under workspace, cloned from url.
func New(workspace, url string) (*Worktree, error) {
	name, err := repoutil.ExtractRepoName(url)
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	return &Worktree{
		Path: constants.RepoPath(workspace, name),
		URL:  url,
	}, nil
}

func (w *Worktree) run(ctx context.Context, op string, args ...string) (procrunner.Result, error) {
	result, err := procrunner.Run(ctx, procrunner.Spec{
		Argv:    append([]string{"git"}, args...),
		Dir:     w.Path,
		Timeout: defaultTimeout,
	})
	if err != nil {
		log.Printf("%s failed to start: args=%v error=%v", op, args, err)
		return result, fmt.Errorf("%s: %w", op, errorkinds.NewSpawnError(append([]string{"git"}, args...), err))
	}
	if result.ExitCode != 0 {
		if gitutil.IsAuthError(result.Stderr) {
			log.Printf("%s failed with an authentication error against the remote: args=%v", op, args)
		}
		log.Printf("%s exited %d: args=%v stderr=%s", op, result.ExitCode, args, result.Stderr)
		return result, fmt.Errorf("%s: %w", op, errorkinds.NewExitError(append([]string{"git"}, args...), result.ExitCode, result.Stderr))
	}
	return result, nil
}

// isValidClone reports whether Path exists and contains a readable .git dir.
func (w *Worktree) isValidClone() bool {
	info, err := os.Stat(filepath.Join(w.Path, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

// EnsureCloned clones the repository if Path is absent or invalid; it is a
// no-op if a valid clone already exists.
func (w *Worktree) EnsureCloned(ctx context.Context) error {
	if w.isValidClone() {
		log.Printf("already cloned: path=%s", w.Path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return fmt.Errorf("clone failed: creating parent dir: %w", err)
	}

	if err := ratelimit.Wait(ctx, ratelimit.OperationGitClone); err != nil {
		return fmt.Errorf("clone failed: rate limit wait: %w", err)
	}

	log.Printf("cloning: url=%s path=%s", w.URL, w.Path)
	result, err := procrunner.Run(ctx, procrunner.Spec{
		Argv:    []string{"git", "clone", w.URL, w.Path},
		Timeout: defaultTimeout,
	})
	if err != nil {
		return fmt.Errorf("clone failed: %w", errorkinds.NewSpawnError([]string{"git", "clone", w.URL}, err))
	}
	if result.ExitCode != 0 {
		if gitutil.IsAuthError(result.Stderr) {
			log.Printf("clone failed with an authentication error, not a transient one: url=%s", w.URL)
		}
		return fmt.Errorf("clone failed: %w", errorkinds.NewExitError([]string{"git", "clone", w.URL}, result.ExitCode, result.Stderr))
	}
	return nil
}

// Pull fast-forwards the current branch from the remote. Failure is
// tolerated by design (§4.2): a stale clone is not fatal, so errors are
// logged and returned for the caller to ignore if it wishes.
func (w *Worktree) Pull(ctx context.Context) error {
	if err := ratelimit.Wait(ctx, ratelimit.OperationGitClone); err != nil {
		return fmt.Errorf("pull: rate limit wait: %w", err)
	}
	_, err := w.run(ctx, "pull", "pull", "--ff-only")
	return err
}

// PrepareWorkBranch checks out the fixed work branch, creating it from the
// default branch if absent, resets it to a clean state, and runs
// PostCheckoutCmd if set. Failure aborts the request.
func (w *Worktree) PrepareWorkBranch(ctx context.Context) error {
	if _, err := w.run(ctx, "prepare_work_branch", "rev-parse", "--verify", constants.WorkBranch); err != nil {
		log.Printf("work branch absent, creating: branch=%s", constants.WorkBranch)
		if _, err := w.run(ctx, "prepare_work_branch", "checkout", "-b", constants.WorkBranch); err != nil {
			return err
		}
	} else if _, err := w.run(ctx, "prepare_work_branch", "checkout", constants.WorkBranch); err != nil {
		return err
	}

	if err := w.ResetHard(ctx, "HEAD"); err != nil {
		return err
	}

	if w.PostCheckoutCmd != "" {
		result, err := procrunner.Run(ctx, procrunner.Spec{
			Argv:    []string{"sh", "-c", w.PostCheckoutCmd},
			Dir:     w.Path,
			Timeout: defaultTimeout,
		})
		if err != nil || result.ExitCode != 0 {
			return fmt.Errorf("prepare_work_branch: post-checkout command failed: %w",
				errorkinds.NewExitError([]string{"sh", "-c", w.PostCheckoutCmd}, result.ExitCode, result.Stderr))
		}
	}
	return nil
}

// CheckoutBranch checks out name, creating it from the current HEAD if
// create is true and it does not yet exist.
func (w *Worktree) CheckoutBranch(ctx context.Context, name string, create bool) error {
	args := []string{"checkout"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, name)
	_, err := w.run(ctx, "checkout_branch", args...)
	return err
}

// CreateAtomicBranch creates name from base and checks it out.
func (w *Worktree) CreateAtomicBranch(ctx context.Context, base, name string) error {
	_, err := w.run(ctx, "create_atomic_branch", "checkout", "-b", name, base)
	return err
}

// DeleteBranch removes name. If force is true, an unmerged branch is
// deleted anyway (-D instead of -d).
func (w *Worktree) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := w.run(ctx, "delete_branch", "branch", flag, name)
	return err
}

// Commit stages every working-tree change, untracked files included, and
// commits it with message.
// It returns false, nil if there was nothing to commit, never an error in
// that case.
func (w *Worktree) Commit(ctx context.Context, message string) (bool, error) {
	if _, err := w.run(ctx, "commit", "add", "-A"); err != nil {
		return false, err
	}

	result, err := procrunner.Run(ctx, procrunner.Spec{
		Argv:    []string{"git", "diff", "--cached", "--quiet"},
		Dir:     w.Path,
		Timeout: defaultTimeout,
	})
	if err != nil {
		return false, fmt.Errorf("commit: %w", errorkinds.NewSpawnError([]string{"git", "diff", "--cached", "--quiet"}, err))
	}
	if result.ExitCode == 0 {
		// Nothing staged; diff --cached --quiet exits 0 when there's no diff.
		log.Printf("commit: nothing to commit")
		return false, nil
	}

	if _, err := w.run(ctx, "commit", "commit", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// GetCommitHash resolves ref to a full commit hash.
func (w *Worktree) GetCommitHash(ctx context.Context, ref string) (string, error) {
	result, err := w.run(ctx, "get_commit_hash", "rev-parse", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}

// GetCurrentBranch returns the checked-out branch name.
func (w *Worktree) GetCurrentBranch(ctx context.Context) (string, error) {
	result, err := w.run(ctx, "get_current_branch", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}

// CheckoutFile restores path from HEAD, discarding any working-tree edits.
func (w *Worktree) CheckoutFile(ctx context.Context, path string) error {
	_, err := w.run(ctx, "checkout_file", "checkout", "HEAD", "--", path)
	return err
}

// CheckoutFileFromRef restores path from an arbitrary ref instead of HEAD,
// e.g. "{hash}~1" to materialize a file's pre-commit content on disk
// without needing an in-memory snapshot taken before the commit existed.
func (w *Worktree) CheckoutFileFromRef(ctx context.Context, ref, path string) error {
	_, err := w.run(ctx, "checkout_file_from_ref", "checkout", ref, "--", path)
	return err
}

// ChangedFiles lists the repo-relative paths a single commit touched.
func (w *Worktree) ChangedFiles(ctx context.Context, hash string) ([]string, error) {
	result, err := w.run(ctx, "changed_files", "diff-tree", "--no-commit-id", "--name-only", "-r", hash)
	if err != nil {
		return nil, err
	}
	return splitLines(result.Stdout), nil
}

// ChangedFilesBetween lists the repo-relative paths that differ between
// two refs, used to find the union of files a batch of commits touched.
func (w *Worktree) ChangedFilesBetween(ctx context.Context, from, to string) ([]string, error) {
	result, err := w.run(ctx, "changed_files_between", "diff", "--name-only", from, to)
	if err != nil {
		return nil, err
	}
	return splitLines(result.Stdout), nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ResetHard discards the working tree and index back to ref. An empty ref
// means HEAD.
func (w *Worktree) ResetHard(ctx context.Context, ref string) error {
	if ref == "" {
		ref = "HEAD"
	}
	_, err := w.run(ctx, "reset_hard", "reset", "--hard", ref)
	if err != nil {
		return fmt.Errorf("%w: %w", errorkinds.ErrRepositoryCorrupt, err)
	}
	return nil
}

// CherryPick applies hash onto the current branch.
func (w *Worktree) CherryPick(ctx context.Context, hash string) error {
	_, err := w.run(ctx, "cherry_pick", "cherry-pick", hash)
	return err
}

// SquashAndRebase collapses every commit made on atomic since it forked
// from target into a single commit on target, with a generated message.
func (w *Worktree) SquashAndRebase(ctx context.Context, atomic, target string) error {
	mergeBase, err := w.run(ctx, "squash_and_rebase", "merge-base", target, atomic)
	if err != nil {
		return err
	}
	base := strings.TrimSpace(mergeBase.Stdout)

	if _, err := w.run(ctx, "squash_and_rebase", "checkout", target); err != nil {
		return err
	}

	result, err := procrunner.Run(ctx, procrunner.Spec{
		Argv:    []string{"git", "merge", "--squash", atomic},
		Dir:     w.Path,
		Timeout: defaultTimeout,
	})
	if err != nil || result.ExitCode != 0 {
		return fmt.Errorf("squash_and_rebase: %w", errorkinds.NewExitError([]string{"git", "merge", "--squash", atomic}, result.ExitCode, result.Stderr))
	}

	message := fmt.Sprintf("Squash of %s (from %s)", atomic, base)
	_, err = w.run(ctx, "squash_and_rebase", "commit", "-m", message)
	return err
}

// Push pushes branch, or the current branch if branch is empty.
func (w *Worktree) Push(ctx context.Context, branch string) error {
	args := []string{"push", "origin"}
	if branch != "" {
		args = append(args, branch)
	}
	_, err := w.run(ctx, "push", args...)
	return err
}
