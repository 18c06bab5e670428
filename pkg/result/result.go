// Package result holds the shared request → Result map (§4.10): an
// in-memory, lock-guarded status record per mod request, kept entirely in
// process memory. A restart loses every in-flight and historical result —
// there is no persistence layer here, by design (§1's out-of-scope list
// covers external persistence).
package result

import (
	"fmt"
	"sync"
	"time"
)

// Status is one point in a request's monotone status progression.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// validTransitions enumerates every status a request may move to from a
// given status; anything absent is not a terminal-to-anywhere transition
// and anything not listed at all (the four terminal ones) never appears
// as a source, so they have no outgoing edges.
var validTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusProcessing: true,
		// A pending request may be cancelled before the worker picks it
		// up (§5); that cancellation is recorded as a direct
		// queued -> failed transition with message "cancelled".
		StatusFailed: true,
	},
	StatusProcessing: {
		StatusSuccess: true,
		StatusPartial: true,
		StatusFailed:  true,
		StatusError:   true,
	},
}

func canTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// FileValidation is one compiled-and-compared file's pass/fail outcome,
// mirrored from pkg/engine.FileValidation at the boundary between the
// worker and this map — result intentionally doesn't import engine, since
// the dependency graph in spec §2 only has the queue depend on both, not
// the result model depend on the engine.
type FileValidation struct {
	File   string
	Passed bool
}

// Result is one request's progress record.
type Result struct {
	ID                string
	Status            Status
	Message           string
	Accepted          []string
	Rejected          []string
	ValidationResults []FileValidation
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Store is the request-id -> Result map, guarded by a single mutex;
// Get/All return snapshots so callers never observe a Result mutating
// underneath them.
type Store struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewStore returns an empty result store.
func NewStore() *Store {
	return &Store{results: make(map[string]*Result)}
}

// Create inserts a new queued Result for id. Callers do this at enqueue
// time, before the worker ever sees the request.
func (s *Store) Create(id string) Result {
	now := time.Now()
	r := &Result{ID: id, Status: StatusQueued, Message: "queued", CreatedAt: now, UpdatedAt: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = r
	return *r
}

// transition applies mutate to the stored Result for id if and only if the
// status it's about to move to is a valid forward transition from its
// current status; returns an error otherwise (a logic bug in the caller,
// not a user-facing condition).
func (s *Store) transition(id string, to Status, mutate func(*Result)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[id]
	if !ok {
		return fmt.Errorf("result: unknown request id %q", id)
	}
	if !canTransition(r.Status, to) {
		return fmt.Errorf("result: invalid status transition %s -> %s for %q", r.Status, to, id)
	}
	mutate(r)
	r.Status = to
	r.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing records that the worker has picked up id.
func (s *Store) MarkProcessing(id string) error {
	return s.transition(id, StatusProcessing, func(r *Result) {
		r.Message = "processing"
	})
}

// Complete records a request's terminal outcome.
func (s *Store) Complete(id string, status Status, message string, accepted, rejected []string, validationResults []FileValidation) error {
	return s.transition(id, status, func(r *Result) {
		r.Message = message
		r.Accepted = accepted
		r.Rejected = rejected
		r.ValidationResults = validationResults
	})
}

// CancelQueued moves id straight from queued to failed with message
// "cancelled", for a request the worker never picked up. It is a no-op
// error (not a panic) if id has already left the queued state — the
// worker won the race, and the caller should let it run to completion.
func (s *Store) CancelQueued(id string) error {
	return s.transition(id, StatusFailed, func(r *Result) {
		r.Message = "cancelled"
	})
}

// Get returns a snapshot of id's Result.
func (s *Store) Get(id string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return Result{}, false
	}
	return *r, true
}

// All returns a snapshot of every known Result, keyed by id.
func (s *Store) All() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Result, len(s.results))
	for id, r := range s.results {
		out[id] = *r
	}
	return out
}
