// Package validator implements the assembly-equivalence oracle: given the
// assembly produced from a file before and after a refactoring, it decides
// whether every function present in both is textually identical once
// register-allocation-independent noise (symbol names, label numbering,
// data references, comments, padding, whitespace) has been normalized away.
// This is the engine's sole correctness oracle (§4.5) — no peephole
// relaxation beyond what normalization already does.
package validator

import (
	"fmt"
	"sync"
)

// Validator is one concrete assembly-comparison strategy, bound to a fixed
// compiler optimization level.
type Validator interface {
	// ID returns the variant's stable registry key (e.g. "asm_o0").
	ID() string
	// Name returns the variant's human-readable display name, surfaced by
	// GET /api/available/validators.
	Name() string
	// OptimizationLevel returns the compiler optimization level this
	// variant's assembly was produced at.
	OptimizationLevel() int
	// Validate reports whether original and modified assembly are
	// equivalent under this variant's comparison rules.
	Validate(original, modified string) bool
}

// Registry holds validator variants keyed by id.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewRegistry returns an empty validator registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register adds v under its own ID.
func (r *Registry) Register(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[v.ID()] = v
}

// Get looks up a validator by id.
func (r *Registry) Get(id string) (Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[id]
	if !ok {
		return nil, fmt.Errorf("validator: unknown variant %q", id)
	}
	return v, nil
}

// Entry pairs a registered variant's stable id with its display name.
type Entry struct {
	ID   string
	Name string
}

// List returns every registered variant as an (id, name) Entry, for
// GET /api/available/validators.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.validators))
	for id, v := range r.validators {
		out = append(out, Entry{ID: id, Name: v.Name()})
	}
	return out
}

// asmValidator is the shared implementation behind asm_o0 and asm_o3; the
// two variants differ only in which optimization level they're bound to,
// since the comparison algorithm itself is level-independent.
type asmValidator struct {
	id    string
	level int
}

// NewO0 returns the asm_o0 validator: level-0 assembly comparison, used by
// default and for source-level cosmetic changes.
func NewO0() Validator { return &asmValidator{id: "asm_o0", level: 0} }

// NewO3 returns the asm_o3 validator: level-3 assembly comparison, used for
// changes whose semantic equivalence must survive optimization.
func NewO3() Validator { return &asmValidator{id: "asm_o3", level: 3} }

func (v *asmValidator) ID() string   { return v.id }
func (v *asmValidator) Name() string { return fmt.Sprintf("Assembly equivalence (O%d)", v.level) }
func (v *asmValidator) OptimizationLevel() int { return v.level }

func (v *asmValidator) Validate(original, modified string) bool {
	origFuncs := extractFunctions(original)
	modFuncs := extractFunctions(modified)

	symbolTable := make(map[string]struct{}, len(origFuncs)+len(modFuncs))
	for name := range origFuncs {
		symbolTable[name] = struct{}{}
	}
	for name := range modFuncs {
		symbolTable[name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(origFuncs))
	for name, of := range origFuncs {
		seen[name] = struct{}{}
		mf, ok := modFuncs[name]
		if !ok {
			if isDiscardable(of) {
				continue
			}
			return false
		}
		if !bodiesEqual(of, mf, symbolTable) {
			return false
		}
	}
	for name, mf := range modFuncs {
		if _, ok := seen[name]; ok {
			continue
		}
		if isDiscardable(mf) {
			continue
		}
		return false
	}
	return true
}

// isDiscardable reports whether a function present in only one assembly
// dump is acceptable to skip rather than treat as a mismatch: it belongs to
// a COMDAT group, so its absence on the other side plausibly means the
// linker discarded a duplicate definition rather than the refactoring
// having actually removed it.
func isDiscardable(f function) bool {
	return f.comdat
}

func bodiesEqual(a, b function, symbolTable map[string]struct{}) bool {
	na := normalizeBody(a.body, symbolTable)
	nb := normalizeBody(b.body, symbolTable)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
