package scheduling

import (
	"context"
	"errors"
	"sync"

	"github.com/stratus-faas/stratus/internal/function"
	"github.com/stratus-faas/stratus/internal/pool"
)

var ErrQueueFull = errors.New("invocation queue is full")
var ErrTimedOut = errors.New("invocation deadline exceeded")
var ErrCanceled = errors.New("invocation canceled")
var ErrNotFound = errors.New("unknown invocation")

// trackedInvocation carries an invocation through the scheduling subsystem.
type trackedInvocation struct {
	inv *function.Invocation

	mu       sync.Mutex
	status   function.Status
	err      error
	canceled bool
	ec       *pool.ExecContext // set while running

	done chan struct{}
}

func newTracked(inv *function.Invocation) *trackedInvocation {
	return &trackedInvocation{
		inv:    inv,
		status: function.StatusQueued,
		done:   make(chan struct{}),
	}
}

func (t *trackedInvocation) Status() function.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *trackedInvocation) isCanceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

func (t *trackedInvocation) setRunning(c *pool.ExecContext) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != function.StatusQueued {
		return false
	}
	t.status = function.StatusRunning
	t.ec = c
	return true
}

// complete moves the invocation to a terminal status. The first terminal
// transition wins; later calls are no-ops.
func (t *trackedInvocation) complete(status function.Status, err error) bool {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return false
	}
	t.status = status
	t.err = err
	t.ec = nil
	t.mu.Unlock()
	close(t.done)
	return true
}

// InvocationHandle lets the submitter wait for the invocation outcome.
type InvocationHandle struct {
	Id string
	t  *trackedInvocation
}

// Wait blocks until the invocation reaches a terminal status or ctx is done.
func (h *InvocationHandle) Wait(ctx context.Context) (function.Status, error) {
	select {
	case <-h.t.done:
		h.t.mu.Lock()
		defer h.t.mu.Unlock()
		return h.t.status, h.t.err
	case <-ctx.Done():
		return h.t.Status(), ctx.Err()
	}
}

// FunctionStats is a point-in-time view of one function's scheduling state.
type FunctionStats struct {
	QueueDepth     int
	BusyContexts   int
	IdleContexts   int
	MaxConcurrency int
}
