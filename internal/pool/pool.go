package pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LK4D4/trylock"
	"github.com/lithammer/shortuuid"
	"github.com/stratus-faas/stratus/internal/function"
)

var ErrAtCapacity = errors.New("max concurrency reached for function")
var ErrProvisioning = errors.New("could not provision a new execution context")

// ErrHandler reports that the handler itself failed; the platform worked.
var ErrHandler = errors.New("function handler failed")

// ErrInfrastructure reports a platform-side execution failure.
var ErrInfrastructure = errors.New("execution infrastructure failure")

// Provisioner is the opaque substrate that creates and drives the containers
// backing execution contexts.
type Provisioner interface {
	Provision(f *function.Function) (string, error)
	Destroy(contID string) error
	Execute(ctx context.Context, contID string, inv *function.Invocation) (*function.ExecutionReport, error)
}

// ContextPool owns every execution context of one function. It is the sole
// mutator of context state; acquire, release and destroy are serialized by
// its lock so the concurrency-cap invariant stays atomic.
type ContextPool struct {
	mu   trylock.Mutex
	fun  *function.Function
	prov Provisioner

	idle         []*ExecContext // most recently used at the end
	busy         map[string]*ExecContext
	provisioning int // cold starts in flight, counted against the cap

	idleTimeout time.Duration
	released    chan struct{}
}

func newContextPool(f *function.Function, prov Provisioner, idleTimeout time.Duration) *ContextPool {
	return &ContextPool{
		fun:         f,
		prov:        prov,
		busy:        make(map[string]*ExecContext),
		idleTimeout: idleTimeout,
		released:    make(chan struct{}, 1),
	}
}

func (p *ContextPool) Function() *function.Function {
	return p.fun
}

// Acquire returns a context ready to run one invocation, reusing the most
// recently used warm context if any, else cold-starting a new one under the
// concurrency cap. Fails with ErrAtCapacity when busy+idle contexts already
// fill the cap, or with ErrProvisioning if the cold start fails.
func (p *ContextPool) Acquire() (*ExecContext, error) {
	p.mu.Lock()
	now := time.Now()
	for n := len(p.idle); n > 0; n = len(p.idle) {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		if now.After(c.expireAt) {
			// expired but not collected yet
			c.state = StateDead
			go p.destroyContainer(c)
			continue
		}
		c.state = StateBusy
		c.warm = true
		c.LastUsed = now
		c.Invocations++
		p.busy[c.Id] = c
		p.mu.Unlock()
		return c, nil
	}

	if len(p.busy)+p.provisioning >= p.fun.MaxConcurrency {
		p.mu.Unlock()
		return nil, ErrAtCapacity
	}
	p.provisioning++
	p.mu.Unlock()

	// cold start, outside the lock: provisioning may be slow
	contID, err := p.prov.Provision(p.fun)

	p.mu.Lock()
	p.provisioning--
	if err != nil {
		p.mu.Unlock()
		p.signalRelease() // the reserved slot is free again
		return nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	c := &ExecContext{
		Id:          shortuuid.New(),
		Function:    p.fun.Name,
		ContID:      contID,
		Created:     now,
		LastUsed:    now,
		Invocations: 1,
		state:       StateBusy,
		pool:        p,
	}
	p.busy[c.Id] = c
	p.mu.Unlock()
	return c, nil
}

// Release returns a context after an invocation. A nil outcome puts it back
// in the warm-idle set; any failure or timeout makes it dead and destroys
// the backing container. Releasing a dead context is a no-op.
func (p *ContextPool) Release(c *ExecContext, outcome error) {
	p.mu.Lock()
	if c.state == StateDead {
		p.mu.Unlock()
		return
	}
	delete(p.busy, c.Id)
	if outcome == nil && c.state != StateDraining {
		c.state = StateIdle
		c.LastUsed = time.Now()
		c.expireAt = c.LastUsed.Add(p.idleTimeout)
		p.idle = append(p.idle, c)
	} else {
		c.state = StateDead
		go p.destroyContainer(c)
	}
	p.mu.Unlock()
	p.signalRelease()
}

// Kill forces termination of invocation invId if it is still the one running
// on c; a stale kill (the invocation already finished and c was recycled for
// another one) is a no-op. The context drains until the run loop observes the
// cancellation and releases it with a failure outcome, which destroys it.
func (p *ContextPool) Kill(c *ExecContext, invId string) {
	p.mu.Lock()
	if c.state != StateBusy || c.invId != invId {
		p.mu.Unlock()
		return
	}
	c.state = StateDraining
	cancel := c.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Released signals whenever capacity may have been freed. Used by the
// scheduler to park while the pool is at capacity.
func (p *ContextPool) Released() <-chan struct{} {
	return p.released
}

func (p *ContextPool) signalRelease() {
	select {
	case p.released <- struct{}{}:
	default:
	}
}

func (p *ContextPool) destroyContainer(c *ExecContext) {
	if err := p.prov.Destroy(c.ContID); err != nil {
		log.Printf("Could not destroy container %s: %v", c.ContID, err)
	}
}

// CollectExpired destroys warm-idle contexts whose idle timeout elapsed. A
// pool currently being mutated is skipped; the next scan gets it.
func (p *ContextPool) CollectExpired(now time.Time) int {
	if !p.mu.TryLock() {
		return 0
	}
	kept := p.idle[:0]
	collected := 0
	for _, c := range p.idle {
		if now.After(c.expireAt) {
			c.state = StateDead
			collected++
			log.Printf("supervisor: collecting idle context %s for %s", c.Id, c.Function)
			go p.destroyContainer(c)
		} else {
			kept = append(kept, c)
		}
	}
	p.idle = kept
	p.mu.Unlock()
	return collected
}

// TerminateOverdue force-terminates busy contexts whose invocation deadline
// passed without the run loop noticing. Second line of defense behind the
// per-run context deadline.
func (p *ContextPool) TerminateOverdue(now time.Time) {
	if !p.mu.TryLock() {
		return
	}
	type overdueRun struct {
		c     *ExecContext
		invId string
	}
	var overdue []overdueRun
	for _, c := range p.busy {
		if !c.deadline.IsZero() && now.After(c.deadline) {
			overdue = append(overdue, overdueRun{c, c.invId})
		}
	}
	p.mu.Unlock()

	for _, o := range overdue {
		log.Printf("supervisor: terminating overdue context %s for %s", o.c.Id, o.c.Function)
		p.Kill(o.c, o.invId)
	}
}

// Reconcile pre-warms idle contexts up to the function's desired warm-pool
// size, without exceeding the concurrency cap.
func (p *ContextPool) Reconcile() {
	p.Prewarm(p.fun.DesiredWarm)
}

// Prewarm provisions idle contexts until target are available (bounded by
// the concurrency cap), to cut cold-start latency on upcoming invocations.
func (p *ContextPool) Prewarm(target int) {
	for {
		p.mu.Lock()
		if len(p.idle) >= target ||
			len(p.busy)+len(p.idle)+p.provisioning >= p.fun.MaxConcurrency {
			p.mu.Unlock()
			return
		}
		p.provisioning++
		p.mu.Unlock()

		contID, err := p.prov.Provision(p.fun)

		p.mu.Lock()
		p.provisioning--
		if err != nil {
			p.mu.Unlock()
			log.Printf("Pre-warm for %s failed: %v", p.fun.Name, err)
			return
		}
		now := time.Now()
		c := &ExecContext{
			Id:       shortuuid.New(),
			Function: p.fun.Name,
			ContID:   contID,
			Created:  now,
			LastUsed: now,
			state:    StateIdle,
			pool:     p,
			expireAt: now.Add(p.idleTimeout),
		}
		p.idle = append(p.idle, c)
		p.mu.Unlock()
	}
}

// Counts returns the number of busy and warm-idle contexts.
func (p *ContextPool) Counts() (busy int, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.busy), len(p.idle)
}

// Shutdown destroys every context owned by the pool.
func (p *ContextPool) Shutdown() {
	p.mu.Lock()
	var all []*ExecContext
	for _, c := range p.busy {
		c.state = StateDead
		all = append(all, c)
	}
	p.busy = make(map[string]*ExecContext)
	for _, c := range p.idle {
		c.state = StateDead
		all = append(all, c)
	}
	p.idle = nil
	p.mu.Unlock()

	for _, c := range all {
		p.destroyContainer(c)
	}
}
