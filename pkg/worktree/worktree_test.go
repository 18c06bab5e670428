package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newTestRemote creates a bare-equivalent local repository with one commit
// on its default branch, suitable for cloning in tests.
func newTestRemote(t *testing.T) string {
	t.Helper()
	remoteDir := filepath.Join(t.TempDir(), "origin")
	runGit(t, remoteDir, remoteDir, "init", "-b", "main")
	runGit(t, "", remoteDir, "config", "user.email", "test@example.com")
	runGit(t, "", remoteDir, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(remoteDir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, "", remoteDir, "add", "-A")
	runGit(t, "", remoteDir, "commit", "-m", "initial")
	return remoteDir
}

func runGit(t *testing.T, mkdir, dir string, args ...string) {
	t.Helper()
	if mkdir != "" {
		if err := os.MkdirAll(mkdir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func newClonedWorktree(t *testing.T) *Worktree {
	t.Helper()
	remote := newTestRemote(t)
	workspace := t.TempDir()
	wt, err := New(workspace, remote)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := wt.EnsureCloned(context.Background()); err != nil {
		t.Fatalf("EnsureCloned: %v", err)
	}
	runGit(t, "", wt.Path, "config", "user.email", "test@example.com")
	runGit(t, "", wt.Path, "config", "user.name", "Test")
	return wt
}

func TestEnsureClonedIsIdempotent(t *testing.T) {
	wt := newClonedWorktree(t)
	if err := wt.EnsureCloned(context.Background()); err != nil {
		t.Fatalf("second EnsureCloned should be a no-op, got: %v", err)
	}
}

func TestEnsureClonedFailure(t *testing.T) {
	workspace := t.TempDir()
	wt, err := New(workspace, "/nonexistent/path/to/repo.git")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := wt.EnsureCloned(context.Background()); err == nil {
		t.Fatal("expected clone failure for nonexistent remote")
	}
}

func TestPrepareWorkBranchCreatesAndResets(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	if err := wt.PrepareWorkBranch(ctx); err != nil {
		t.Fatalf("PrepareWorkBranch: %v", err)
	}

	branch, err := wt.GetCurrentBranch(ctx)
	if err != nil {
		t.Fatalf("GetCurrentBranch: %v", err)
	}
	if branch != "levelup-work" {
		t.Errorf("branch = %q, want %q", branch, "levelup-work")
	}

	// Second call should succeed by checking out the now-existing branch.
	if err := wt.PrepareWorkBranch(ctx); err != nil {
		t.Fatalf("second PrepareWorkBranch: %v", err)
	}
}

func TestCommitNoChanges(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	committed, err := wt.Commit(ctx, "no-op")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed {
		t.Error("expected Commit to report false when nothing changed")
	}
}

func TestCommitWithChanges(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(wt.Path, "README.md"), []byte("changed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	committed, err := wt.Commit(ctx, "edit readme")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !committed {
		t.Fatal("expected Commit to report true")
	}

	hash, err := wt.GetCommitHash(ctx, "HEAD")
	if err != nil {
		t.Fatalf("GetCommitHash: %v", err)
	}
	if len(hash) != 40 {
		t.Errorf("hash = %q, want 40 hex characters", hash)
	}
}

func TestCheckoutFileRestoresFromHead(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	path := filepath.Join(wt.Path, "README.md")
	if err := os.WriteFile(path, []byte("dirty\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := wt.CheckoutFile(ctx, "README.md"); err != nil {
		t.Fatalf("CheckoutFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content after checkout = %q, want %q", data, "hello\n")
	}
}

func TestResetHardDiscardsChanges(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	path := filepath.Join(wt.Path, "README.md")
	if err := os.WriteFile(path, []byte("dirty\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := wt.ResetHard(ctx, "HEAD"); err != nil {
		t.Fatalf("ResetHard: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content after reset = %q, want %q", data, "hello\n")
	}
}

func TestCreateAtomicBranchAndCherryPick(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	if err := wt.PrepareWorkBranch(ctx); err != nil {
		t.Fatalf("PrepareWorkBranch: %v", err)
	}

	if err := wt.CreateAtomicBranch(ctx, "levelup-work", "levelup-work-atomic-test"); err != nil {
		t.Fatalf("CreateAtomicBranch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(wt.Path, "new.txt"), []byte("content\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	committed, err := wt.Commit(ctx, "atomic change")
	if err != nil || !committed {
		t.Fatalf("Commit: committed=%v err=%v", committed, err)
	}
	hash, err := wt.GetCommitHash(ctx, "HEAD")
	if err != nil {
		t.Fatalf("GetCommitHash: %v", err)
	}

	if err := wt.CheckoutBranch(ctx, "levelup-work", false); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}

	if err := wt.CherryPick(ctx, hash); err != nil {
		t.Fatalf("CherryPick: %v", err)
	}

	if _, err := os.Stat(filepath.Join(wt.Path, "new.txt")); err != nil {
		t.Errorf("expected new.txt to exist after cherry-pick: %v", err)
	}
}

func TestSquashAndRebase(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	if err := wt.PrepareWorkBranch(ctx); err != nil {
		t.Fatalf("PrepareWorkBranch: %v", err)
	}
	if err := wt.CreateAtomicBranch(ctx, "levelup-work", "levelup-work-atomic-squash"); err != nil {
		t.Fatalf("CreateAtomicBranch: %v", err)
	}

	for i, content := range []string{"one\n", "two\n"} {
		path := filepath.Join(wt.Path, "multi.txt")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Commit(ctx, "step"); err != nil {
			t.Fatalf("Commit step %d: %v", i, err)
		}
	}

	if err := wt.SquashAndRebase(ctx, "levelup-work-atomic-squash", "levelup-work"); err != nil {
		t.Fatalf("SquashAndRebase: %v", err)
	}

	branch, err := wt.GetCurrentBranch(ctx)
	if err != nil {
		t.Fatalf("GetCurrentBranch: %v", err)
	}
	if branch != "levelup-work" {
		t.Errorf("branch after squash = %q, want %q", branch, "levelup-work")
	}

	data, err := os.ReadFile(filepath.Join(wt.Path, "multi.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two\n" {
		t.Errorf("multi.txt = %q, want %q", data, "two\n")
	}
}

func TestDeleteBranch(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	if err := wt.CheckoutBranch(ctx, "scratch", true); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	if err := wt.CheckoutBranch(ctx, "main", false); err != nil {
		t.Fatalf("CheckoutBranch back to main: %v", err)
	}
	if err := wt.DeleteBranch(ctx, "scratch", false); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
}

func TestPullFastForwardsCleanClone(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	// Cloning sets up origin/main tracking, so pull should fast-forward
	// cleanly (a no-op, since nothing changed upstream).
	if err := wt.Pull(ctx); err != nil {
		t.Fatalf("Pull: %v", err)
	}
}

func TestErrorCarriesOperationAndStderr(t *testing.T) {
	wt := newClonedWorktree(t)
	ctx := context.Background()

	err := wt.CheckoutBranch(ctx, "no-such-branch-xyz", false)
	if err == nil {
		t.Fatal("expected error checking out nonexistent branch")
	}
	if !strings.Contains(err.Error(), "checkout_branch") {
		t.Errorf("error = %q, want it to mention the operation name", err)
	}
}
