// Package queue implements the single-producer/single-consumer request
// queue (§4.9): the HTTP boundary enqueues a ModRequest and immediately
// records it as "queued" in the result store; one dedicated worker
// goroutine pops requests in order and runs them through the engine.
// Concurrent HTTP submissions enqueue freely but are always serialized by
// the single worker, since concurrent repository operations and compiler
// invocations would contend for the same worktree (§4.9's explicit
// "simplicity beats throughput" tradeoff).
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/levelup-tools/levelup/pkg/engine"
	"github.com/levelup-tools/levelup/pkg/logger"
	"github.com/levelup-tools/levelup/pkg/result"
)

var log = logger.New("queue")

// popTimeout bounds how long the worker blocks on an empty queue before
// re-checking its stop channel, so Stop always returns promptly instead of
// waiting for the next submission.
const popTimeout = 200 * time.Millisecond

// capacity is the buffered channel's size. A deep backlog is still bounded:
// past this many pending requests, Submit blocks the caller rather than
// growing memory without limit.
const capacity = 256

// Queue holds pending requests and the one worker goroutine that drains
// them into the engine, writing every outcome into the shared result
// store.
type Queue struct {
	engine  *engine.Engine
	results *result.Store

	pending chan engine.Request
	stop    chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	cancelled map[string]bool
	// inFlight holds the cancel func for whichever request id is currently
	// being processed, so Cancel can reach it once the pre-dispatch
	// cancelled-flag window (wasCancelled) has already closed.
	inFlight map[string]context.CancelFunc
}

// New returns a Queue wired to eng and store. Start must be called before
// any submitted request is processed.
func New(eng *engine.Engine, store *result.Store) *Queue {
	return &Queue{
		engine:    eng,
		results:   store,
		pending:   make(chan engine.Request, capacity),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		cancelled: make(map[string]bool),
		inFlight:  make(map[string]context.CancelFunc),
	}
}

// Start launches the worker goroutine. Calling Start more than once on the
// same Queue is a programming error.
func (q *Queue) Start() {
	go q.run()
}

// Stop signals the worker to exit after its current request (if any)
// finishes, and blocks until it has. Requests still sitting in pending are
// left unprocessed.
func (q *Queue) Stop() {
	close(q.stop)
	<-q.done
}

// Submit assigns req a fresh UUID, records it as queued, and enqueues it.
// It returns the assigned ID immediately; the caller polls the result
// store for progress.
func (q *Queue) Submit(req engine.Request) string {
	id := uuid.New().String()
	req.ID = id
	req.CreatedAt = time.Now()

	q.results.Create(id)
	q.pending <- req
	return id
}

// Cancel intervenes on id however its current state allows. A request
// still sitting in pending is marked failed/"cancelled" outright (§5, §8).
// A request already being processed can't be marked cancelled directly —
// the result store's transition table has no queued-equivalent edge out
// of processing — so instead its per-request context is cancelled, which
// pkg/engine observes between refactorings and finalizes from whatever
// was accepted so far, recording partial (or failed). A request that has
// already reached a terminal status can't be intervened on at all.
func (q *Queue) Cancel(id string) error {
	if err := q.results.CancelQueued(id); err == nil {
		q.mu.Lock()
		q.cancelled[id] = true
		q.mu.Unlock()
		return nil
	}

	q.mu.Lock()
	cancel, ok := q.inFlight[id]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("queue: cannot cancel %q: not queued or processing", id)
	}
	cancel()
	return nil
}

// Size reports how many requests are currently buffered, waiting for the
// worker.
func (q *Queue) Size() int {
	return len(q.pending)
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		case req := <-q.pending:
			q.process(req)
		case <-time.After(popTimeout):
			// Loop back around to re-check q.stop; keeps shutdown snappy
			// on an idle queue.
		}
	}
}

func (q *Queue) process(req engine.Request) {
	if q.wasCancelled(req.ID) {
		return
	}

	if err := q.results.MarkProcessing(req.ID); err != nil {
		log.Printf("queue: mark_processing failed: request=%s error=%v", req.ID, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.mu.Lock()
	q.inFlight[req.ID] = cancel
	q.mu.Unlock()

	outcome := q.engine.Process(ctx, req)

	q.mu.Lock()
	delete(q.inFlight, req.ID)
	q.mu.Unlock()
	cancel()

	status := result.Status(outcome.Status)
	fv := make([]result.FileValidation, len(outcome.ValidationResults))
	for i, v := range outcome.ValidationResults {
		fv[i] = result.FileValidation{File: v.File, Passed: v.Passed}
	}

	if err := q.results.Complete(req.ID, status, outcome.Message, outcome.Accepted, outcome.Rejected, fv); err != nil {
		log.Printf("queue: complete failed: request=%s error=%v", req.ID, err)
	}
}

func (q *Queue) wasCancelled(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled[id]
}
