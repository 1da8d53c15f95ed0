package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stratus-faas/stratus/internal/function"
)

// fakeProvisioner backs pools with in-memory containers so no container
// runtime is needed.
type fakeProvisioner struct {
	mu         sync.Mutex
	created    int
	destroyed  []string
	failNext   int // fail this many Provision calls
	execErr    error
	execDelay  time.Duration
	executedOn []string
}

func (f *fakeProvisioner) Provision(fn *function.Function) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return "", errors.New("provision failed")
	}
	f.created++
	return fmt.Sprintf("cont-%d", f.created), nil
}

func (f *fakeProvisioner) Destroy(contID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, contID)
	return nil
}

func (f *fakeProvisioner) Execute(ctx context.Context, contID string, inv *function.Invocation) (*function.ExecutionReport, error) {
	f.mu.Lock()
	f.executedOn = append(f.executedOn, contID)
	delay := f.execDelay
	err := f.execErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &function.ExecutionReport{Result: "ok", Duration: delay.Seconds()}, nil
}

func (f *fakeProvisioner) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *fakeProvisioner) destroyedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.destroyed)
}

func testFunction(maxConcurrency int) *function.Function {
	return &function.Function{
		Name:           "test-fn",
		Runtime:        "python310",
		Handler:        "handler.handler",
		MaxConcurrency: maxConcurrency,
		TimeoutSec:     30,
	}
}

func waitForDestroyed(t *testing.T, prov *fakeProvisioner, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if prov.destroyedCount() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d destroyed containers, got %d", want, prov.destroyedCount())
}

func TestAcquireColdThenWarmReuse(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(2), prov, time.Minute)

	c1, err := p.Acquire()
	if err != nil {
		t.Fatalf("cold acquire failed: %v", err)
	}
	if c1.Warm() {
		t.Error("first acquire should be a cold start")
	}
	if c1.State() != StateBusy {
		t.Errorf("acquired context should be busy, got %v", c1.State())
	}

	p.Release(c1, nil)
	if c1.State() != StateIdle {
		t.Errorf("released context should be warm-idle, got %v", c1.State())
	}

	c2, err := p.Acquire()
	if err != nil {
		t.Fatalf("warm acquire failed: %v", err)
	}
	if c2.Id != c1.Id {
		t.Error("expected reuse of the warm context")
	}
	if !c2.Warm() {
		t.Error("reused context should report warm")
	}
	if prov.createdCount() != 1 {
		t.Errorf("expected a single container, got %d", prov.createdCount())
	}
}

func TestAcquireMostRecentlyUsedFirst(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(3), prov, time.Minute)

	a, _ := p.Acquire()
	b, _ := p.Acquire()
	p.Release(a, nil)
	p.Release(b, nil) // b is now the most recently used

	c, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if c.Id != b.Id {
		t.Errorf("expected most recently used %s, got %s", b.Id, c.Id)
	}
}

func TestCapacityInvariant(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(2), prov, time.Minute)

	c1, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire 1 failed: %v", err)
	}
	c2, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire 2 failed: %v", err)
	}

	if _, err := p.Acquire(); !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}

	busy, idle := p.Counts()
	if busy != 2 || idle != 0 {
		t.Errorf("expected 2 busy / 0 idle, got %d/%d", busy, idle)
	}

	p.Release(c1, nil)
	if _, err := p.Acquire(); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	p.Release(c2, nil)

	busy, idle = p.Counts()
	if busy+idle > 2 {
		t.Errorf("cap exceeded: %d busy + %d idle", busy, idle)
	}
}

func TestReleaseFailureDestroysContext(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(2), prov, time.Minute)

	c, _ := p.Acquire()
	p.Release(c, errors.New("handler crashed"))

	if c.State() != StateDead {
		t.Errorf("failed context should be dead, got %v", c.State())
	}
	waitForDestroyed(t, prov, 1)

	// the dead context must never be handed out again
	c2, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire after failure failed: %v", err)
	}
	if c2.Id == c.Id {
		t.Error("dead context was reused")
	}
	if prov.createdCount() != 2 {
		t.Errorf("expected a fresh container, created=%d", prov.createdCount())
	}
}

func TestReleaseDeadIsIdempotent(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(2), prov, time.Minute)

	c, _ := p.Acquire()
	p.Release(c, errors.New("boom"))
	p.Release(c, nil) // late duplicate must not resurrect it
	p.Release(c, errors.New("boom again"))

	if c.State() != StateDead {
		t.Errorf("context should stay dead, got %v", c.State())
	}
	busy, idle := p.Counts()
	if busy != 0 || idle != 0 {
		t.Errorf("expected empty pool, got %d busy / %d idle", busy, idle)
	}
	waitForDestroyed(t, prov, 1)
	if n := prov.destroyedCount(); n != 1 {
		t.Errorf("container destroyed %d times", n)
	}
}

func TestAcquireProvisioningError(t *testing.T) {
	prov := &fakeProvisioner{failNext: 1}
	p := newContextPool(testFunction(2), prov, time.Minute)

	if _, err := p.Acquire(); !errors.Is(err, ErrProvisioning) {
		t.Fatalf("expected ErrProvisioning, got %v", err)
	}

	// the reserved slot must be freed on failure
	if _, err := p.Acquire(); err != nil {
		t.Fatalf("acquire after failed provision failed: %v", err)
	}
}

func TestKillDrainsRunningInvocation(t *testing.T) {
	prov := &fakeProvisioner{execDelay: 5 * time.Second}
	p := newContextPool(testFunction(1), prov, time.Minute)

	c, _ := p.Acquire()
	inv := &function.Invocation{
		Id:       "inv-1",
		Fun:      p.Function(),
		Arrival:  time.Now(),
		Deadline: time.Now().Add(time.Minute),
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), inv)
		errCh <- err
	}()

	// let Run install its cancel func
	time.Sleep(50 * time.Millisecond)
	p.Kill(c, "inv-1")

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("kill did not interrupt the running invocation")
	}
	if c.State() != StateDraining {
		t.Errorf("killed context should be draining, got %v", c.State())
	}

	// a draining context is never returned to the warm set
	p.Release(c, nil)
	if c.State() != StateDead {
		t.Errorf("released draining context should be dead, got %v", c.State())
	}
	waitForDestroyed(t, prov, 1)
}

func TestKillStaleInvocationIsNoop(t *testing.T) {
	prov := &fakeProvisioner{execDelay: 200 * time.Millisecond}
	p := newContextPool(testFunction(1), prov, time.Minute)

	c, _ := p.Acquire()
	inv := &function.Invocation{
		Id:       "current",
		Fun:      p.Function(),
		Arrival:  time.Now(),
		Deadline: time.Now().Add(time.Minute),
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), inv)
		errCh <- err
	}()

	// a kill for an invocation that already left this context must not
	// terminate the one currently running on it
	time.Sleep(50 * time.Millisecond)
	p.Kill(c, "finished-long-ago")

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("stale kill terminated the running invocation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("invocation did not finish")
	}
	if c.State() != StateBusy {
		t.Errorf("context should still be busy, got %v", c.State())
	}
	p.Release(c, nil)
	if c.State() != StateIdle {
		t.Errorf("context should return to the warm set, got %v", c.State())
	}
}

func TestRunEnforcesDeadline(t *testing.T) {
	prov := &fakeProvisioner{execDelay: 5 * time.Second}
	p := newContextPool(testFunction(1), prov, time.Minute)

	c, _ := p.Acquire()
	inv := &function.Invocation{
		Id:       "inv-1",
		Fun:      p.Function(),
		Arrival:  time.Now(),
		Deadline: time.Now().Add(100 * time.Millisecond),
	}

	start := time.Now()
	_, err := c.Run(context.Background(), inv)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("deadline was not enforced promptly")
	}
}

func TestCollectExpired(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(3), prov, 20*time.Millisecond)

	c, _ := p.Acquire()
	p.Release(c, nil)

	if n := p.CollectExpired(time.Now()); n != 0 {
		t.Fatalf("collected a context before its timeout: %d", n)
	}

	time.Sleep(40 * time.Millisecond)
	if n := p.CollectExpired(time.Now()); n != 1 {
		t.Fatalf("expected 1 collected context, got %d", n)
	}
	if c.State() != StateDead {
		t.Errorf("collected context should be dead, got %v", c.State())
	}
	_, idle := p.Counts()
	if idle != 0 {
		t.Errorf("expected empty idle set, got %d", idle)
	}
	waitForDestroyed(t, prov, 1)
}

func TestTerminateOverdue(t *testing.T) {
	prov := &fakeProvisioner{execDelay: 5 * time.Second}
	p := newContextPool(testFunction(1), prov, time.Minute)

	c, _ := p.Acquire()
	inv := &function.Invocation{
		Id:       "inv-1",
		Fun:      p.Function(),
		Arrival:  time.Now(),
		Deadline: time.Now().Add(time.Hour),
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), inv)
		errCh <- err
	}()

	// let Run install its deadline, then pretend it already passed
	time.Sleep(50 * time.Millisecond)
	p.mu.Lock()
	c.deadline = time.Now().Add(-time.Second)
	p.mu.Unlock()
	p.TerminateOverdue(time.Now())

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("overdue invocation was not terminated")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("overdue invocation kept running after TerminateOverdue")
	}
	if c.State() != StateDraining {
		t.Errorf("terminated context should be draining, got %v", c.State())
	}
}

func TestPrewarm(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(3), prov, time.Minute)

	p.Prewarm(2)
	busy, idle := p.Counts()
	if busy != 0 || idle != 2 {
		t.Fatalf("expected 0 busy / 2 idle, got %d/%d", busy, idle)
	}

	// bounded by the concurrency cap
	p.Prewarm(10)
	_, idle = p.Counts()
	if idle != 3 {
		t.Errorf("prewarm exceeded the cap: %d idle", idle)
	}

	// pre-warmed contexts are handed out without a cold start
	c, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire of pre-warmed context failed: %v", err)
	}
	if prov.createdCount() != 3 {
		t.Errorf("acquire after prewarm created a container: %d", prov.createdCount())
	}
	if !c.Warm() {
		t.Error("pre-warmed context should count as a warm start")
	}
}

func TestShutdownDestroysEverything(t *testing.T) {
	prov := &fakeProvisioner{}
	p := newContextPool(testFunction(4), prov, time.Minute)

	c1, _ := p.Acquire()
	c2, _ := p.Acquire()
	p.Release(c2, nil)
	_ = c1

	p.Shutdown()
	if n := prov.destroyedCount(); n != 2 {
		t.Errorf("expected 2 destroyed containers, got %d", n)
	}
	busy, idle := p.Counts()
	if busy != 0 || idle != 0 {
		t.Errorf("expected empty pool after shutdown, got %d/%d", busy, idle)
	}
}
