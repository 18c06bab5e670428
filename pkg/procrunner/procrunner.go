// Package procrunner wraps subprocess execution for the git, compiler, and
// symbol-extractor invocations used throughout the engine. It centralizes
// the one non-obvious bit of process hygiene the rest of the codebase
// shouldn't have to think about: a timed-out or canceled child must not
// leave orphaned descendants behind (compilers and Doxygen both fork
// helpers), so every command runs in its own process group that gets
// signaled as a unit.
package procrunner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/levelup-tools/levelup/pkg/logger"
)

var log = logger.New("procrunner")

// Spec describes a subprocess invocation.
type Spec struct {
	Argv    []string // Argv[0] is the executable; rest are arguments.
	Dir     string   // working directory; empty means the caller's cwd.
	Env     []string // extra environment variables, appended to the inherited environment.
	Timeout time.Duration
}

// Result captures the outcome of a completed (or killed) subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes the subprocess described by spec and blocks until it exits,
// the context is canceled, or spec.Timeout elapses. Stdout and stderr are
// captured in full and lossily decoded to valid UTF-8 so that binary noise
// in compiler or Doxygen output never corrupts a Result's JSON encoding.
//
// Run never writes to the filesystem itself; callers needing output on disk
// redirect argv (e.g. the compiler driver passes `-o <path>`).
func Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, fmt.Errorf("procrunner: empty argv")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// exec.CommandContext only kills the direct child on cancellation; it
	// leaves any grandchildren (a compiler's cc1, Doxygen's helper
	// processes) running. Kill the whole group ourselves instead.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		log.Printf("killing process group: argv=%v pgid=%d", spec.Argv, cmd.Process.Pid)
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := Result{
		Stdout: toValidUTF8(stdout.String()),
		Stderr: toValidUTF8(stderr.String()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
		log.Printf("completed: argv=%v elapsed=%v exit=0", spec.Argv, elapsed)
		return result, nil
	case runCtx.Err() != nil:
		log.Printf("killed: argv=%v elapsed=%v error=%v", spec.Argv, elapsed, runCtx.Err())
		return result, fmt.Errorf("procrunner: %s: %w", strings.Join(spec.Argv, " "), runCtx.Err())
	case errAs(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		log.Printf("completed: argv=%v elapsed=%v exit=%d", spec.Argv, elapsed, result.ExitCode)
		return result, nil
	default:
		// Process never started, or was killed before producing a normal
		// exit status (timeout/cancellation). The caller decides whether
		// that's a rejection or an engine error.
		log.Printf("failed to run: argv=%v elapsed=%v error=%v", spec.Argv, elapsed, err)
		if runCtx.Err() != nil {
			return result, fmt.Errorf("procrunner: %s: %w", strings.Join(spec.Argv, " "), runCtx.Err())
		}
		return result, fmt.Errorf("procrunner: spawn %s: %w", spec.Argv[0], err)
	}
}

func errAs(err error, target **exec.ExitError) bool {
	for err != nil {
		if e, ok := err.(*exec.ExitError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// toValidUTF8 replaces invalid UTF-8 byte sequences so subprocess output
// (which may be arbitrary bytes from a misbehaving tool) can always be
// safely embedded in a Result message or JSON response.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}
