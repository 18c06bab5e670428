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

// Clang drives clang/clang++ to produce Intel-syntax assembly. It supports
// all four optimization levels natively, so GetOptimizationFlags never
// needs to remap one level onto another.
type Clang struct {
	// BinPath is the clang executable, e.g. "clang++".
	BinPath string
	// PreludeDir is the directory containing the force-included
	// constants.PreludeHeaderName.
	PreludeDir string
}

func (c *Clang) ID() string   { return "clang" }
func (c *Clang) Name() string { return "Clang" }

func (c *Clang) GetOptimizationFlags(level int) []string {
	return []string{fmt.Sprintf("-O%d", clampLevel(level))}
}

func (c *Clang) CompileFile(ctx context.Context, source string, optimizationLevel int) (Result, error) {
	binPath := c.BinPath
	if binPath == "" {
		binPath = "clang++"
	}

	outPath := source + ".s"
	defer os.Remove(outPath)

	args := []string{"-S", "-masm=intel", "-o", outPath}
	args = append(args, c.GetOptimizationFlags(optimizationLevel)...)
	if c.PreludeDir != "" {
		args = append(args, "-include", filepath.Join(c.PreludeDir, constants.PreludeHeaderName))
	}
	args = append(args, source)

	result, err := procrunner.Run(ctx, procrunner.Spec{
		Argv: append([]string{binPath}, args...),
	})
	if err != nil {
		return Result{}, fmt.Errorf("compiler(clang): %w", errorkinds.NewSpawnError(append([]string{binPath}, args...), err))
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
