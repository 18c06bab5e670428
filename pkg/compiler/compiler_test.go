package compiler

import (
	"context"
	"testing"
)

type fakeCompiler struct{ id string }

func (f *fakeCompiler) ID() string   { return f.id }
func (f *fakeCompiler) Name() string { return f.id }
func (f *fakeCompiler) CompileFile(ctx context.Context, source string, level int) (Result, error) {
	return Result{SourcePath: source, AsmText: "fake"}, nil
}
func (f *fakeCompiler) GetOptimizationFlags(level int) []string { return nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeCompiler{id: "msvc"})
	reg.Register(&fakeCompiler{id: "clang"})

	c, err := reg.Get("clang")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.ID() != "clang" {
		t.Errorf("ID() = %q, want clang", c.ID())
	}

	if _, err := reg.Get("gcc"); err == nil {
		t.Fatal("expected error for unknown compiler id")
	}

	ids := reg.IDs()
	if len(ids) != 2 {
		t.Errorf("len(IDs()) = %d, want 2", len(ids))
	}
}

func TestClangOptimizationFlags(t *testing.T) {
	c := &Clang{}
	tests := []struct {
		level int
		want  string
	}{
		{0, "-O0"}, {1, "-O1"}, {2, "-O2"}, {3, "-O3"}, {99, "-O3"}, {-1, "-O0"},
	}
	for _, tt := range tests {
		flags := c.GetOptimizationFlags(tt.level)
		if len(flags) != 1 || flags[0] != tt.want {
			t.Errorf("GetOptimizationFlags(%d) = %v, want [%s]", tt.level, flags, tt.want)
		}
	}
}

func TestMSVCOptimizationFlagsRemapsNonZeroNonThree(t *testing.T) {
	c := &MSVC{}
	tests := []struct {
		level int
		want  string
	}{
		{0, "/Od"}, {1, "/O2"}, {2, "/O2"}, {3, "/Ox"},
	}
	for _, tt := range tests {
		flags := c.GetOptimizationFlags(tt.level)
		if len(flags) != 1 || flags[0] != tt.want {
			t.Errorf("GetOptimizationFlags(%d) = %v, want [%s]", tt.level, flags, tt.want)
		}
	}
}

func TestClangCompileFileSuccess(t *testing.T) {
	dir := t.TempDir()
	source := dir + "/foo.cpp"
	writeFile(t, source, "int main() { return 0; }\n")

	c := &Clang{BinPath: "clang++"}
	if !binaryAvailable(c.BinPath) {
		t.Skip("clang++ not available in this environment")
	}

	result, err := c.CompileFile(context.Background(), source, 0)
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected successful compile, diagnostics: %s", result.Diagnostics)
	}
}

func TestClangCompileFileSyntaxError(t *testing.T) {
	dir := t.TempDir()
	source := dir + "/bad.cpp"
	writeFile(t, source, "this is not valid c++ *&^\n")

	c := &Clang{BinPath: "clang++"}
	if !binaryAvailable(c.BinPath) {
		t.Skip("clang++ not available in this environment")
	}

	result, err := c.CompileFile(context.Background(), source, 0)
	if err != nil {
		t.Fatalf("CompileFile should not return a Go error for a source-level failure: %v", err)
	}
	if result.Succeeded() {
		t.Fatal("expected compile failure")
	}
	if result.Diagnostics == "" {
		t.Error("expected non-empty diagnostics on failed compile")
	}
}

func TestClangCompileFileMissingBinary(t *testing.T) {
	c := &Clang{BinPath: "levelup-no-such-compiler-xyz"}
	_, err := c.CompileFile(context.Background(), "/dev/null", 0)
	if err == nil {
		t.Fatal("expected error when the compiler binary cannot be spawned")
	}
}
