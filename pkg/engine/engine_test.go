package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/levelup-tools/levelup/pkg/compiler"
	"github.com/levelup-tools/levelup/pkg/mod"
	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/validator"
)

// fakeCompiler "compiles" a translation unit by returning its own source
// text as the assembly artifact, so tests can drive the validator off
// plain file content instead of needing a real toolchain.
type fakeCompiler struct{}

func (fakeCompiler) ID() string   { return "fake" }
func (fakeCompiler) Name() string { return "Fake" }
func (fakeCompiler) GetOptimizationFlags(level int) []string {
	return []string{}
}
func (fakeCompiler) CompileFile(ctx context.Context, source string, level int) (compiler.Result, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return compiler.Result{SourcePath: source, Diagnostics: err.Error()}, nil
	}
	return compiler.Result{SourcePath: source, AsmText: string(data)}, nil
}

// fakeValidator always returns a fixed verdict, letting tests exercise the
// engine's accept/rollback plumbing independent of real assembly text.
type fakeValidator struct {
	id     string
	level  int
	accept bool
}

func (f *fakeValidator) ID() string             { return f.id }
func (f *fakeValidator) Name() string           { return f.id }
func (f *fakeValidator) OptimizationLevel() int { return f.level }
func (f *fakeValidator) Validate(original, modified string) bool {
	return f.accept
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v (dir=%s): %v\n%s", args, dir, err, out)
	}
}

// newOriginRepo creates a local repository to use as a clone source,
// checked out on "main" so pushes to "levelup-work" never collide with
// denyCurrentBranch.
func newOriginRepo(t *testing.T, fileName, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "origin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "origin@example.com")
	runGit(t, dir, "config", "user.name", "Origin")
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

// setGitIdentity points the real git author/committer env vars at a fixed
// test identity; the engine clones and commits into a fresh workspace whose
// local repo config it never sets itself, so the process-wide git identity
// variables are what make commits succeed.
func setGitIdentity(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
}

type staticExtractor struct{ syms []symbols.Symbol }

func (s *staticExtractor) Extract(ctx context.Context, repoPath string) ([]symbols.Symbol, error) {
	return s.syms, nil
}

func newTestEngine(extractor *staticExtractor, workspace string, validatorAccepts bool) *Engine {
	compilers := compiler.NewRegistry()
	compilers.Register(fakeCompiler{})

	validators := validator.NewRegistry()
	validators.Register(&fakeValidator{id: "asm_o0", level: 0, accept: validatorAccepts})
	validators.Register(&fakeValidator{id: "asm_o3", level: 3, accept: validatorAccepts})

	mods := mod.NewRegistry()
	mods.Register(mod.AddOverride{})
	mods.Register(mod.RemoveInline{})

	return New(workspace, extractor, "fake", compilers, validators, mods)
}

func TestProcessBuiltinAddOverrideSuccess(t *testing.T) {
	setGitIdentity(t)
	origin := newOriginRepo(t, "widget.h",
		"struct Base {\n  virtual void Render();\n};\nstruct Derived : Base {\n  virtual void Render();\n};\n")
	workspace := t.TempDir()

	extractor := &staticExtractor{syms: []symbols.Symbol{
		{Kind: symbols.KindFunction, QualifiedName: "Derived::Render", File: "widget.h", StartLine: 5, IsMember: true, Qualifiers: []string{"virtual"}},
	}}
	e := newTestEngine(extractor, workspace, true)

	outcome := e.Process(context.Background(), Request{
		ID:       "req-1",
		RepoName: "widget",
		RepoURL:  origin,
		Type:     SourceBuiltin,
		ModID:    "add-override",
	})

	if outcome.Status != StatusSuccess {
		t.Fatalf("Status = %v, want success (message=%q)", outcome.Status, outcome.Message)
	}
	if len(outcome.Accepted) != 1 {
		t.Fatalf("len(Accepted) = %d, want 1", len(outcome.Accepted))
	}
	if len(outcome.Rejected) != 0 {
		t.Errorf("len(Rejected) = %d, want 0", len(outcome.Rejected))
	}

	out, err := exec.Command("git", "-C", origin, "show", "levelup-work:widget.h").CombinedOutput()
	if err != nil {
		t.Fatalf("reading pushed work branch: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "override") {
		t.Errorf("pushed work branch content = %q, want it to contain override", out)
	}
}

func TestProcessBuiltinEmptyModStreamFails(t *testing.T) {
	setGitIdentity(t)
	origin := newOriginRepo(t, "widget.h", "struct Widget {\n  void Render();\n};\n")
	workspace := t.TempDir()

	extractor := &staticExtractor{syms: []symbols.Symbol{
		{Kind: symbols.KindFunction, QualifiedName: "Widget::Render", File: "widget.h", StartLine: 2, IsMember: true},
	}}
	e := newTestEngine(extractor, workspace, true)

	outcome := e.Process(context.Background(), Request{
		ID:       "req-2",
		RepoName: "widget",
		RepoURL:  origin,
		Type:     SourceBuiltin,
		ModID:    "remove-inline",
	})

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %v, want failed (message=%q)", outcome.Status, outcome.Message)
	}
	if len(outcome.Accepted) != 0 || len(outcome.Rejected) != 0 {
		t.Errorf("Accepted=%v Rejected=%v, want both empty", outcome.Accepted, outcome.Rejected)
	}

	_, err := exec.Command("git", "-C", origin, "rev-parse", "--verify", "levelup-work").CombinedOutput()
	if err == nil {
		t.Error("expected no levelup-work branch to have been pushed")
	}
}

func TestProcessBuiltinValidationRejectionRollsBack(t *testing.T) {
	setGitIdentity(t)
	origin := newOriginRepo(t, "widget.h",
		"struct Base {\n  virtual void Render();\n};\nstruct Derived : Base {\n  virtual void Render();\n};\n")
	workspace := t.TempDir()

	extractor := &staticExtractor{syms: []symbols.Symbol{
		{Kind: symbols.KindFunction, QualifiedName: "Derived::Render", File: "widget.h", StartLine: 5, IsMember: true, Qualifiers: []string{"virtual"}},
	}}
	e := newTestEngine(extractor, workspace, false)

	outcome := e.Process(context.Background(), Request{
		ID:       "req-3",
		RepoName: "widget",
		RepoURL:  origin,
		Type:     SourceBuiltin,
		ModID:    "add-override",
	})

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %v, want failed", outcome.Status)
	}
	if len(outcome.Rejected) != 1 {
		t.Fatalf("len(Rejected) = %d, want 1", len(outcome.Rejected))
	}

	_, err := exec.Command("git", "-C", origin, "rev-parse", "--verify", "levelup-work").CombinedOutput()
	if err == nil {
		t.Error("expected no levelup-work branch to have been pushed after an all-rejected request")
	}
}

func TestProcessCommitCherryPickSuccess(t *testing.T) {
	setGitIdentity(t)
	origin := newOriginRepo(t, "widget.h", "struct Widget {\n  void Render(); // old comment\n};\n")
	runGit(t, origin, "checkout", "-b", "feature")
	if err := os.WriteFile(filepath.Join(origin, "widget.h"), []byte("struct Widget {\n  void Render(); // new comment\n};\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, origin, "commit", "-am", "update comment")
	commitHash := strings.TrimSpace(runGitOutput(t, origin, "rev-parse", "HEAD"))
	runGit(t, origin, "checkout", "main")

	workspace := t.TempDir()
	extractor := &staticExtractor{}
	e := newTestEngine(extractor, workspace, true)

	outcome := e.Process(context.Background(), Request{
		ID:         "req-4",
		RepoName:   "widget",
		RepoURL:    origin,
		Type:       SourceCommit,
		CommitHash: commitHash,
	})

	if outcome.Status != StatusSuccess {
		t.Fatalf("Status = %v, want success (message=%q)", outcome.Status, outcome.Message)
	}
	if len(outcome.Accepted) != 1 {
		t.Fatalf("len(Accepted) = %d, want 1", len(outcome.Accepted))
	}
}

func TestEngineBatchingAcceptsBothWhenValidationPasses(t *testing.T) {
	setGitIdentity(t)
	origin := newOriginRepo(t, "widget.h",
		"struct Base {\n  virtual void A();\n  virtual void B();\n};\nstruct Derived : Base {\n  virtual void A();\n  virtual void B();\n};\n")
	workspace := t.TempDir()

	extractor := &staticExtractor{syms: []symbols.Symbol{
		{Kind: symbols.KindFunction, QualifiedName: "Derived::A", File: "widget.h", StartLine: 6, IsMember: true, Qualifiers: []string{"virtual"}},
		{Kind: symbols.KindFunction, QualifiedName: "Derived::B", File: "widget.h", StartLine: 7, IsMember: true, Qualifiers: []string{"virtual"}},
	}}
	e := newTestEngine(extractor, workspace, true)
	e.EnableBatching = true
	e.BatchThreshold = 0.5

	outcome := e.Process(context.Background(), Request{
		ID:       "req-5",
		RepoName: "widget",
		RepoURL:  origin,
		Type:     SourceBuiltin,
		ModID:    "add-override",
	})

	if outcome.Status != StatusSuccess {
		t.Fatalf("Status = %v, want success (message=%q)", outcome.Status, outcome.Message)
	}
	if len(outcome.Accepted) != 2 {
		t.Fatalf("len(Accepted) = %d, want 2", len(outcome.Accepted))
	}
}

func runGitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}
