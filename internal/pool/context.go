package pool

import (
	"context"
	"time"

	"github.com/stratus-faas/stratus/internal/function"
)

// State of an execution context. Dead is terminal: a dead context is
// destroyed and never reused.
type State int32

const (
	StateCold State = iota
	StateIdle
	StateBusy
	StateDraining
	StateDead
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateIdle:
		return "warm-idle"
	case StateBusy:
		return "busy"
	case StateDraining:
		return "draining"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

// ExecContext is a sandboxed environment running one invocation at a time.
// State is owned by the ContextPool and mutated only under its lock.
type ExecContext struct {
	Id          string
	Function    string
	ContID      string // backing container
	Created     time.Time
	LastUsed    time.Time
	Invocations int64

	pool     *ContextPool
	state    State
	warm     bool               // taken from the warm-idle set, not cold-started
	invId    string             // while busy: the running invocation
	expireAt time.Time          // while idle: when the supervisor may collect it
	deadline time.Time          // while busy: the running invocation's deadline
	cancel   context.CancelFunc // forces termination of the running invocation
}

// State returns the current lifecycle state.
func (c *ExecContext) State() State {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.state
}

// Warm reports whether the context was taken from the warm-idle set for the
// invocation it currently serves, as opposed to being cold-started. Prewarmed
// contexts count as warm from their first acquire. Stable while the caller
// holds the context.
func (c *ExecContext) Warm() bool {
	return c.warm
}

// Run executes the handler for inv inside this context, enforcing the
// invocation deadline. The caller must have acquired the context and must
// release it with the returned error as outcome.
func (c *ExecContext) Run(ctx context.Context, inv *function.Invocation) (*function.ExecutionReport, error) {
	runCtx, cancel := context.WithDeadline(ctx, inv.Deadline)
	defer cancel()

	c.pool.mu.Lock()
	c.invId = inv.Id
	c.deadline = inv.Deadline
	c.cancel = cancel
	c.pool.mu.Unlock()

	report, err := c.pool.prov.Execute(runCtx, c.ContID, inv)

	c.pool.mu.Lock()
	c.invId = ""
	c.deadline = time.Time{}
	c.cancel = nil
	c.pool.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return report, nil
}
