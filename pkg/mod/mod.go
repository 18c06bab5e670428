// Package mod defines the planner contract: a Mod inspects the symbol
// index (read-only) and lazily yields refactoring plans for the engine to
// apply one at a time. Using iter.Seq2 means a Mod never has to build an
// intermediate slice of every candidate before the engine starts acting on
// the first one — the spec's "lazy sequence" requirement falls out of the
// language feature directly instead of needing a hand-rolled generator.
package mod

import (
	"context"
	"iter"

	"github.com/levelup-tools/levelup/pkg/refactor"
	"github.com/levelup-tools/levelup/pkg/symbols"
)

// Mod is one refactoring-opportunity planner.
type Mod interface {
	// ID is the stable string identifying this mod at the external API
	// boundary.
	ID() string
	// Name is the human-readable display name.
	Name() string
	// Generate scans idx (never mutating it) and yields one
	// refactor.Plan per candidate it finds, in the order the engine
	// should attempt them.
	Generate(ctx context.Context, idx *symbols.Index) iter.Seq2[*refactor.Plan, error]
}

// Registry holds mods keyed by id.
type Registry struct {
	mods map[string]Mod
}

// NewRegistry returns an empty mod registry.
func NewRegistry() *Registry {
	return &Registry{mods: make(map[string]Mod)}
}

// Register adds m under its own ID.
func (r *Registry) Register(m Mod) {
	r.mods[m.ID()] = m
}

// Get looks up a mod by id.
func (r *Registry) Get(id string) (Mod, bool) {
	m, ok := r.mods[id]
	return m, ok
}

// IDs returns every registered mod's id.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.mods))
	for id := range r.mods {
		ids = append(ids, id)
	}
	return ids
}

// Entry pairs a registered mod's stable id with its display name.
type Entry struct {
	ID   string
	Name string
}

// List returns every registered mod as an (id, name) Entry, for
// GET /api/available/mods.
func (r *Registry) List() []Entry {
	out := make([]Entry, 0, len(r.mods))
	for id, m := range r.mods {
		out = append(out, Entry{ID: id, Name: m.Name()})
	}
	return out
}
