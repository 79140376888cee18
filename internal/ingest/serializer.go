package ingest

// serializer.go sequences all commit work for one owner onto a single
// logical timeline. The model is one FIFO task chain per owner key, not
// locks: enqueuing appends to the owner's chain and returns a handle;
// different owners' chains run fully in parallel.
//
// Commit-order numbers are assigned when a task actually starts, not at
// enqueue time, and are strictly increasing per owner with no gaps or
// repeats. Counters are seeded lazily from storage so orders keep
// climbing across process restarts. An earlier task's failure is
// isolated: it is reported on that task's handle and the chain moves on.

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SeedFunc loads the owner's last used commit order from storage.
type SeedFunc func(ctx context.Context, owner uuid.UUID) (int64, error)

// CommitTask is the unit of work run on an owner's chain. order is the
// task's commit-order number.
type CommitTask func(ctx context.Context, order int64) error

// Handle tracks one enqueued task.
type Handle struct {
	done  chan struct{}
	err   error
	order int64
}

// Wait blocks until the task completes and returns its error. The task
// itself is never cancelled by ctx: once enqueued it runs to completion
// to preserve the owner's total order. Wait returning early only means
// the caller stopped watching.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Order returns the commit-order number assigned to the task. Valid
// only after Wait has returned nil or the task error.
func (h *Handle) Order() int64 { return h.order }

type ownerChain struct {
	tail    chan struct{} // closed when the most recently enqueued task finishes
	pending int
	seq     int64
	seeded  bool
}

// Serializer owns the per-owner chains. The zero value is not usable;
// construct with NewSerializer.
type Serializer struct {
	mu     sync.Mutex
	chains map[uuid.UUID]*ownerChain
	seed   SeedFunc
}

// NewSerializer creates a serializer whose commit-order counters are
// seeded by seed on an owner's first task (and again after the owner's
// chain drains and is discarded).
func NewSerializer(seed SeedFunc) *Serializer {
	return &Serializer{
		chains: make(map[uuid.UUID]*ownerChain),
		seed:   seed,
	}
}

// Enqueue appends task to the owner's chain and returns immediately.
// The task runs after every previously enqueued task for this owner has
// finished, and runs detached from the caller's ctx so an aborted
// request cannot break the owner's timeline.
func (s *Serializer) Enqueue(ctx context.Context, owner uuid.UUID, task CommitTask) *Handle {
	h := &Handle{done: make(chan struct{})}

	// Values (request id, trace data) survive; cancellation does not.
	runCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	chain, ok := s.chains[owner]
	if !ok {
		sentinel := make(chan struct{})
		close(sentinel)
		chain = &ownerChain{tail: sentinel}
		s.chains[owner] = chain
	}
	prev := chain.tail
	done := make(chan struct{})
	chain.tail = done
	chain.pending++
	s.mu.Unlock()

	go func() {
		defer close(h.done)
		defer func() {
			close(done)
			s.release(owner, chain)
		}()

		<-prev // strict FIFO: wait for the previous task, success or not

		order, err := s.nextOrder(runCtx, owner, chain)
		if err != nil {
			h.err = err
			return
		}
		h.order = order
		h.err = task(runCtx, order)
	}()

	return h
}

// nextOrder assigns the task's commit-order number. Only one task per
// owner can be here at a time, so the counter needs no further
// synchronization beyond s.mu.
func (s *Serializer) nextOrder(ctx context.Context, owner uuid.UUID, chain *ownerChain) (int64, error) {
	s.mu.Lock()
	seeded, seq := chain.seeded, chain.seq
	s.mu.Unlock()

	if !seeded {
		last, err := s.seed(ctx, owner)
		if err != nil {
			// Fail this task only; the next one retries the seed.
			return 0, fmt.Errorf("seed commit order: %w", err)
		}
		seq = last
	}

	seq++

	s.mu.Lock()
	chain.seeded = true
	chain.seq = seq
	s.mu.Unlock()
	return seq, nil
}

// release drops the owner's chain once it has fully drained. The counter
// is recovered from storage on the owner's next import.
func (s *Serializer) release(owner uuid.UUID, chain *ownerChain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain.pending--
	if chain.pending == 0 && s.chains[owner] == chain {
		delete(s.chains, owner)
	}
}
