package procrunner

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunSuccess(t *testing.T) {
	result, err := Run(context.Background(), Spec{Argv: []string{"echo", "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hello")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	result, err := Run(context.Background(), Spec{Argv: []string{"sh", "-c", "echo oops 1>&2; exit 3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if strings.TrimSpace(result.Stderr) != "oops" {
		t.Errorf("Stderr = %q, want %q", result.Stderr, "oops")
	}
}

func TestRunEmptyArgv(t *testing.T) {
	_, err := Run(context.Background(), Spec{})
	if err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRunMissingExecutable(t *testing.T) {
	_, err := Run(context.Background(), Spec{Argv: []string{"levelup-no-such-binary-xyz"}})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
}

func TestRunTimeout(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), Spec{
		Argv:    []string{"sleep", "5"},
		Timeout: 50 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run took %v after a 50ms timeout; process group may not have been killed", elapsed)
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Run(ctx, Spec{Argv: []string{"sleep", "5"}})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run took %v after cancellation; process group may not have been killed", elapsed)
	}
}

func TestRunKillsProcessGroup(t *testing.T) {
	// A child that forks a grandchild sleeper. If only the direct child is
	// killed on timeout, the grandchild (and this test's cleanup) would hang.
	start := time.Now()
	_, err := Run(context.Background(), Spec{
		Argv:    []string{"sh", "-c", "sleep 5 & wait"},
		Timeout: 50 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run took %v; grandchild process likely survived the timeout", elapsed)
	}
}

func TestRunDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	result, err := Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "pwd && echo $LEVELUP_TEST_VAR"},
		Dir:  dir,
		Env:  []string{"LEVELUP_TEST_VAR=marker"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines of stdout, got %q", result.Stdout)
	}
	if lines[0] != dir {
		t.Errorf("pwd = %q, want %q", lines[0], dir)
	}
	if lines[1] != "marker" {
		t.Errorf("env var = %q, want %q", lines[1], "marker")
	}
}
