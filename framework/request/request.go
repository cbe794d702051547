// Package request correlates outgoing request packets with their responses.
// Ids are process-unique and monotonic; every pending entry is retired
// exactly once, by its response or by its timeout, whichever comes first.
package request

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lahuca/lane/framework/codec"
)

// DefaultTimeout is the per-request deadline when the call site does not
// pick one. Slow operations (joins that load worlds, bulk data reads)
// should pass a larger value explicitly.
const DefaultTimeout = time.Second

var ErrClosed = errors.New("request handler closed")

// Pending is the one-shot handle for an in-flight request. Exactly one
// consumer should read the outcome, either via Wait or via Then.
type Pending struct {
	id       int64
	resolved atomic.Bool
	done     chan codec.Result
	timer    *time.Timer
}

func (p *Pending) ID() int64 { return p.id }

// Done exposes the result channel; it receives exactly one value.
func (p *Pending) Done() <-chan codec.Result { return p.done }

// Wait blocks until the request resolves or ctx is canceled. Only safe off
// the platform main thread.
func (p *Pending) Wait(ctx context.Context) (codec.Result, error) {
	select {
	case r := <-p.done:
		return r, nil
	case <-ctx.Done():
		return codec.Result{}, ctx.Err()
	}
}

// Then chains a transformation, returning a new handle that resolves with
// the mapped result. The original handle must not be consumed elsewhere.
func (p *Pending) Then(fn func(codec.Result) codec.Result) *Pending {
	next := &Pending{id: p.id, done: make(chan codec.Result, 1)}
	next.resolved.Store(true) // next is resolved through p, never directly
	go func() {
		next.done <- fn(<-p.done)
	}()
	return next
}

// AwaitData waits for the request and decodes its payload into T. A
// non-OK result is returned as-is with the zero T.
func AwaitData[T any](ctx context.Context, p *Pending) (T, codec.Result, error) {
	var zero T
	r, err := p.Wait(ctx)
	if err != nil {
		return zero, codec.Result{}, err
	}
	if !r.IsOK() {
		return zero, r, nil
	}
	v, err := codec.ResultDataAs[T](r)
	return v, r, err
}

// Handler owns the pending table. Safe for concurrent use from connection
// read loops, timer callbacks and callers issuing requests.
type Handler struct {
	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]*Pending
	closed  bool
}

func NewHandler() *Handler {
	return &Handler{pending: make(map[int64]*Pending)}
}

// Request allocates an id and registers a pending entry with the given
// timeout (DefaultTimeout when zero). The timeout fires from its own timer,
// independent of whether the connection ever produces a response.
func (h *Handler) Request(timeout time.Duration) (*Pending, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Pending{
		id:   h.nextID.Add(1),
		done: make(chan codec.Result, 1),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.pending[p.id] = p
	h.mu.Unlock()

	p.timer = time.AfterFunc(timeout, func() {
		h.Resolve(p.id, codec.Fail(codec.ResultTimedOut))
	})
	return p, nil
}

// Resolve completes the pending entry for id. It returns true iff the entry
// existed and had not been resolved before; resolving twice, or after the
// timeout fired, is a no-op returning false. Late responses for retired ids
// are therefore discarded here.
func (h *Handler) Resolve(id int64, result codec.Result) bool {
	h.mu.Lock()
	p, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	if !p.resolved.CompareAndSwap(false, true) {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.done <- result
	return true
}

// PendingCount reports the current table size, used by status endpoints.
func (h *Handler) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Close fails every pending request with controllerDisconnected and rejects
// new ones. Called when the owning connection goes away for good.
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	entries := make([]*Pending, 0, len(h.pending))
	for _, p := range h.pending {
		entries = append(entries, p)
	}
	h.pending = make(map[int64]*Pending)
	h.mu.Unlock()

	for _, p := range entries {
		if p.resolved.CompareAndSwap(false, true) {
			if p.timer != nil {
				p.timer.Stop()
			}
			p.done <- codec.Fail(codec.ResultControllerDisconnected)
		}
	}
}
