// Package symbols extracts and indexes C/C++ symbols from a repository
// using an external documentation-style parser (Doxygen), then serves
// queries against a forward (qualified name → Symbol) and reverse
// (file → qualified names) index with lazy per-file invalidation.
package symbols

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/levelup-tools/levelup/pkg/logger"
)

var log = logger.New("symbols:index")

// Kind distinguishes the category of a parsed symbol.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindTypedef   Kind = "typedef"
	KindVariable  Kind = "variable"
	KindNamespace Kind = "namespace"
)

// Symbol describes one extracted declaration.
type Symbol struct {
	Kind          Kind
	Name          string
	QualifiedName string
	File          string // repo-relative
	StartLine     int
	EndLine       int
	Prototype     string
	IsMember      bool
	Qualifiers    []string // e.g. "inline", "virtual", "override", "const", parsed from Prototype
}

// Extractor produces the symbol set for a repository checkout.
type Extractor interface {
	// Extract runs the external parser over repoPath and returns every
	// symbol it found. Implementations may cache generated output on disk
	// across calls but must always return a result consistent with the
	// current on-disk source.
	Extract(ctx context.Context, repoPath string) ([]Symbol, error)
}

// Index holds the forward and reverse symbol maps for one repository
// snapshot, plus the dirty-file set driving lazy re-extraction.
type Index struct {
	mu        sync.RWMutex
	extractor Extractor
	repoPath  string

	forward map[string]Symbol            // qualified name -> Symbol
	reverse map[string]map[string]struct{} // file -> set of qualified names
	dirty   map[string]struct{}           // files changed since last extraction
	loaded  bool
}

// NewIndex returns an empty index bound to repoPath, backed by extractor.
// It must be populated with LoadFromDoxygen before any query.
func NewIndex(extractor Extractor, repoPath string) *Index {
	return &Index{
		extractor: extractor,
		repoPath:  repoPath,
		forward:   make(map[string]Symbol),
		reverse:   make(map[string]map[string]struct{}),
		dirty:     make(map[string]struct{}),
	}
}

// LoadFromDoxygen runs the extractor and fully rebuilds both maps,
// discarding the dirty set (everything is now fresh).
func (idx *Index) LoadFromDoxygen(ctx context.Context) error {
	syms, err := idx.extractor.Extract(ctx, idx.repoPath)
	if err != nil {
		return fmt.Errorf("symbols: extraction failed: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rebuildLocked(syms)
	idx.loaded = true
	idx.dirty = make(map[string]struct{})
	log.Printf("loaded %d symbols from %s", len(syms), idx.repoPath)
	return nil
}

func (idx *Index) rebuildLocked(syms []Symbol) {
	idx.forward = make(map[string]Symbol, len(syms))
	idx.reverse = make(map[string]map[string]struct{})
	for _, s := range syms {
		idx.forward[s.QualifiedName] = s
		if idx.reverse[s.File] == nil {
			idx.reverse[s.File] = make(map[string]struct{})
		}
		idx.reverse[s.File][s.QualifiedName] = struct{}{}
	}
}

// InvalidateFile marks path as dirty. The next query with auto_refresh=true
// triggers a full re-extraction before returning.
func (idx *Index) InvalidateFile(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dirty[path] = struct{}{}
}

// RefreshDirtyFiles re-runs the extractor over the whole repository if any
// file is marked dirty. The external tool has no incremental mode, so a
// partial re-parse isn't possible; correctness takes priority over the cost
// of a full pass.
func (idx *Index) RefreshDirtyFiles(ctx context.Context) error {
	idx.mu.RLock()
	dirty := len(idx.dirty) > 0
	idx.mu.RUnlock()

	if !dirty {
		return nil
	}

	syms, err := idx.extractor.Extract(ctx, idx.repoPath)
	if err != nil {
		return fmt.Errorf("symbols: refresh failed: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rebuildLocked(syms)
	idx.dirty = make(map[string]struct{})
	idx.loaded = true
	log.Printf("refreshed index: %d symbols after dirty-file re-extraction", len(syms))
	return nil
}

func (idx *Index) maybeRefresh(ctx context.Context, autoRefresh bool) error {
	if !autoRefresh {
		return nil
	}
	return idx.RefreshDirtyFiles(ctx)
}

// GetSymbol looks up qname, refreshing first if autoRefresh is true and the
// index has dirty files.
func (idx *Index) GetSymbol(ctx context.Context, qname string, autoRefresh bool) (Symbol, bool, error) {
	if err := idx.maybeRefresh(ctx, autoRefresh); err != nil {
		return Symbol{}, false, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.forward[qname]
	return s, ok, nil
}

// GetSymbolsInFile returns every symbol declared in path, refreshing first
// if requested.
func (idx *Index) GetSymbolsInFile(ctx context.Context, path string, autoRefresh bool) ([]Symbol, error) {
	if err := idx.maybeRefresh(ctx, autoRefresh); err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	qnames := idx.reverse[path]
	out := make([]Symbol, 0, len(qnames))
	for qname := range qnames {
		out = append(out, idx.forward[qname])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out, nil
}

// GetAllSymbols returns every indexed symbol, refreshing first if requested.
func (idx *Index) GetAllSymbols(ctx context.Context, autoRefresh bool) ([]Symbol, error) {
	if err := idx.maybeRefresh(ctx, autoRefresh); err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Symbol, 0, len(idx.forward))
	for _, s := range idx.forward {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out, nil
}

// parseQualifiers extracts the qualifier keywords present in a prototype
// string (e.g. "virtual void Foo() override" -> ["virtual", "override"]).
func parseQualifiers(prototype string) []string {
	known := []string{"inline", "virtual", "override", "final", "const", "static", "explicit", "constexpr"}
	fields := strings.Fields(prototype)
	seen := make(map[string]struct{})
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, "();{}")
		for _, k := range known {
			if f == k {
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					out = append(out, k)
				}
			}
		}
	}
	return out
}

// relFile makes an absolute path produced by the extractor repo-relative.
func relFile(repoPath, absPath string) string {
	rel, err := filepath.Rel(repoPath, absPath)
	if err != nil {
		return absPath
	}
	return rel
}
