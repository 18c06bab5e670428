package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/levelup-tools/levelup/pkg/constants"
	"github.com/levelup-tools/levelup/pkg/errorkinds"
	"github.com/levelup-tools/levelup/pkg/procrunner"
)

// msvcOptFlags maps a 0-3 optimization level onto cl.exe's flag set. cl.exe
// has no flag directly analogous to level 1 or 2 distinct from "some
// optimization"; both collapse to /O2 per §4.4's "levels >0 other than 3
// may map to 2 where no direct analog exists".
var msvcOptFlags = map[int][]string{
	0: {"/Od"},
	1: {"/O2"},
	2: {"/O2"},
	3: {"/Ox"},
}

// MSVC drives cl.exe to produce Intel-syntax assembly (its native syntax).
type MSVC struct {
	// BinPath is the cl.exe executable.
	BinPath string
	// PreludeDir is the directory containing the force-included
	// constants.PreludeHeaderName.
	PreludeDir string
}

func (c *MSVC) ID() string   { return "msvc" }
func (c *MSVC) Name() string { return "MSVC (cl.exe)" }

func (c *MSVC) GetOptimizationFlags(level int) []string {
	flags, ok := msvcOptFlags[clampLevel(level)]
	if !ok {
		return msvcOptFlags[0]
	}
	return flags
}

func (c *MSVC) CompileFile(ctx context.Context, source string, optimizationLevel int) (Result, error) {
	binPath := c.BinPath
	if binPath == "" {
		binPath = "cl.exe"
	}

	outPath := source + ".asm"
	defer os.Remove(outPath)

	args := []string{"/c", "/FA", "/Fa" + outPath}
	args = append(args, c.GetOptimizationFlags(optimizationLevel)...)
	if c.PreludeDir != "" {
		args = append(args, "/FI", filepath.Join(c.PreludeDir, constants.PreludeHeaderName))
	}
	args = append(args, source)

	result, err := procrunner.Run(ctx, procrunner.Spec{
		Argv: append([]string{binPath}, args...),
	})
	if err != nil {
		return Result{}, fmt.Errorf("compiler(msvc): %w", errorkinds.NewSpawnError(append([]string{binPath}, args...), err))
	}
	if result.ExitCode != 0 {
		return Result{SourcePath: source, Diagnostics: result.Stderr}, nil
	}

	asm, err := os.ReadFile(outPath)
	if err != nil {
		return Result{SourcePath: source, Diagnostics: result.Stderr}, nil
	}
	return Result{SourcePath: source, AsmText: string(asm), Diagnostics: result.Stderr}, nil
}
