// Package compiler drives external C/C++ compilers to produce Intel-syntax
// assembly for a single translation unit at a chosen optimization level.
// Variants are identified by a stable id string and registered in a small
// registry, the same polymorphic-by-id pattern the teacher uses for its own
// pluggable engine variants.
package compiler

import (
	"context"
	"fmt"
	"sync"
)

// Result is the outcome of compiling one source file.
type Result struct {
	SourcePath string
	AsmText    string
	// Diagnostics holds captured stderr. Non-empty alongside an empty
	// AsmText means the compile failed; per §4.4 that is a refactoring
	// rejection, never a Go error returned from Compile.
	Diagnostics string
}

// Succeeded reports whether the compile produced usable assembly.
func (r Result) Succeeded() bool {
	return r.AsmText != ""
}

// Compiler is one polymorphic compiler variant (e.g. msvc, clang).
type Compiler interface {
	// ID returns the variant's stable registry key.
	ID() string
	// Name returns the variant's human-readable display name, surfaced by
	// GET /api/available/compilers.
	Name() string
	// CompileFile compiles source at the given optimization level (0-3)
	// and returns the produced assembly. A non-nil error means the
	// compiler binary itself could not be invoked (infrastructure
	// failure); a compile error in the source is instead reported via an
	// empty Result.AsmText plus Result.Diagnostics.
	CompileFile(ctx context.Context, source string, optimizationLevel int) (Result, error)
	// GetOptimizationFlags returns the flags this variant passes for the
	// given level. Pure function; used by validators to label which level
	// produced a given assembly dump.
	GetOptimizationFlags(level int) []string
}

// Registry holds compiler variants keyed by their stable id.
type Registry struct {
	mu        sync.RWMutex
	compilers map[string]Compiler
}

// NewRegistry returns an empty compiler registry.
func NewRegistry() *Registry {
	return &Registry{compilers: make(map[string]Compiler)}
}

// Register adds c under its own ID, overwriting any previous registration
// with the same id.
func (r *Registry) Register(c Compiler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compilers[c.ID()] = c
}

// Get looks up a compiler by id.
func (r *Registry) Get(id string) (Compiler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.compilers[id]
	if !ok {
		return nil, fmt.Errorf("compiler: unknown variant %q", id)
	}
	return c, nil
}

// IDs returns every registered variant's id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.compilers))
	for id := range r.compilers {
		ids = append(ids, id)
	}
	return ids
}

// Entry pairs a registered variant's stable id with its display name.
type Entry struct {
	ID   string
	Name string
}

// List returns every registered variant as an (id, name) Entry, for
// GET /api/available/compilers.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.compilers))
	for id, c := range r.compilers {
		out = append(out, Entry{ID: id, Name: c.Name()})
	}
	return out
}

// clampLevel normalizes an optimization level to [0,3]; callers pass
// already-validated levels, this just guards against a malformed request
// reaching a subprocess invocation.
func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 3 {
		return 3
	}
	return level
}
