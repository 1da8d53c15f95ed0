package scheduling

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/stratus-faas/stratus/internal/config"
	"github.com/stratus-faas/stratus/internal/function"
	"github.com/stratus-faas/stratus/internal/metrics"
	"github.com/stratus-faas/stratus/internal/pool"
)

// how long terminal invocations stay queryable via Status
const trackedRetention = 10 * time.Minute

// errSkipped signals that the current queue head was already completed
// (timed out, canceled or failed) and the loop should move on.
var errSkipped = errors.New("invocation skipped")

// Scheduler matches queued invocations to execution contexts. Every function
// gets its own queue and scheduling loop, so one function's saturation cannot
// starve another's.
type Scheduler struct {
	mgr    *pool.Manager
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	loops map[string]*funcScheduler

	tracked *hashmap.Map[string, *trackedInvocation]

	maxRetries int
	retryDelay time.Duration
}

func New(mgr *pool.Manager) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		mgr:        mgr,
		ctx:        ctx,
		cancel:     cancel,
		loops:      make(map[string]*funcScheduler),
		tracked:    hashmap.New[string, *trackedInvocation](),
		maxRetries: config.GetInt(config.PROVISION_MAX_RETRIES, 3),
		retryDelay: time.Duration(config.GetInt(config.PROVISION_RETRY_DELAY_MS, 200)) * time.Millisecond,
	}
}

// Submit enqueues an invocation for scheduling. Fails immediately with
// ErrQueueFull when the function's queue is at capacity.
func (s *Scheduler) Submit(inv *function.Invocation) (*InvocationHandle, error) {
	t := newTracked(inv)
	fs := s.loopFor(inv.Fun)

	if !fs.queue.Enqueue(t) {
		// cancellations and deadline expiries may hold slots for entries
		// that will never dispatch; reject only if none can be freed
		fs.dropDeadEntries()
		if !fs.queue.Enqueue(t) {
			t.complete(function.StatusRejected, ErrQueueFull)
			metrics.RecordCompletion(inv.Fun.Name, string(function.StatusRejected))
			return nil, ErrQueueFull
		}
	}
	s.tracked.Set(inv.Id, t)
	metrics.SetQueueDepth(inv.Fun.Name, fs.queue.Len())
	return &InvocationHandle{Id: inv.Id, t: t}, nil
}

// Status reports the current status of an invocation.
func (s *Scheduler) Status(id string) (function.Status, bool) {
	t, ok := s.tracked.Get(id)
	if !ok {
		return "", false
	}
	return t.Status(), true
}

// Cancel cancels an invocation: removed from the queue if still pending,
// force-terminated (best effort) if running.
func (s *Scheduler) Cancel(id string) error {
	t, ok := s.tracked.Get(id)
	if !ok {
		return ErrNotFound
	}

	t.mu.Lock()
	switch t.status {
	case function.StatusQueued:
		t.canceled = true
		t.mu.Unlock()
		t.complete(function.StatusCanceled, ErrCanceled)
		s.finish(t)
		// free the slot immediately so backpressure reflects live entries
		fs := s.loopFor(t.inv.Fun)
		fs.queue.Remove(t)
		metrics.SetQueueDepth(t.inv.Fun.Name, fs.queue.Len())
	case function.StatusRunning:
		t.canceled = true
		ec := t.ec
		t.mu.Unlock()
		if ec != nil {
			s.mgr.GetPool(t.inv.Fun).Kill(ec, t.inv.Id)
		}
	default:
		t.mu.Unlock()
	}
	return nil
}

// Snapshot returns per-function scheduling stats for observability.
func (s *Scheduler) Snapshot() map[string]FunctionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]FunctionStats, len(s.loops))
	for name, fs := range s.loops {
		busy, idle := fs.pool.Counts()
		out[name] = FunctionStats{
			QueueDepth:     fs.queue.Len(),
			BusyContexts:   busy,
			IdleContexts:   idle,
			MaxConcurrency: fs.fun.MaxConcurrency,
		}
	}
	return out
}

// Stop terminates all scheduling loops.
func (s *Scheduler) Stop() {
	s.cancel()
}

func (s *Scheduler) loopFor(f *function.Function) *funcScheduler {
	s.mu.RLock()
	fs, ok := s.loops[f.Name]
	s.mu.RUnlock()
	if ok {
		return fs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.loops[f.Name]; ok {
		return fs
	}

	capacity := f.QueueCapacity
	if capacity <= 0 {
		capacity = config.GetInt(config.QUEUE_CAPACITY, 100)
	}
	fs = &funcScheduler{
		fun:   f,
		queue: NewFIFOQueue(capacity),
		pool:  s.mgr.GetPool(f),
		sched: s,
	}
	s.loops[f.Name] = fs
	go fs.run(s.ctx)
	log.Printf("Started scheduling loop for '%s' (queue=%d, maxConcurrency=%d)",
		f.Name, capacity, f.MaxConcurrency)
	return fs
}

// finish records the terminal outcome of t: metrics, async result
// publication and delayed removal from the status map.
func (s *Scheduler) finish(t *trackedInvocation) {
	t.mu.Lock()
	status := t.status
	t.mu.Unlock()

	metrics.RecordCompletion(t.inv.Fun.Name, string(status))
	if t.inv.Async {
		success := status == function.StatusSucceeded
		go PublishAsyncResponse(t.inv.Id, function.Response{
			Success:         success,
			Status:          status,
			ExecutionReport: t.inv.Report,
		})
	}
	time.AfterFunc(trackedRetention, func() {
		s.tracked.Del(t.inv.Id)
	})
}

// funcScheduler is the scheduling loop of a single function.
type funcScheduler struct {
	fun   *function.Function
	queue *FIFOQueue
	pool  *pool.ContextPool
	sched *Scheduler
}

// dropDeadEntries frees queue slots held by entries that no longer need
// dispatch: already-terminal invocations and those whose deadline passed
// while queued.
func (fs *funcScheduler) dropDeadEntries() {
	now := time.Now()
	fs.queue.Sweep(func(t *trackedInvocation) bool {
		if t.Status().Terminal() {
			return true
		}
		if t.inv.Expired(now) {
			if t.complete(function.StatusTimedOut, ErrTimedOut) {
				log.Printf("%v timed out while queued", t.inv)
				fs.sched.finish(t)
			}
			return true
		}
		return false
	})
	metrics.SetQueueDepth(fs.fun.Name, fs.queue.Len())
}

func (fs *funcScheduler) run(ctx context.Context) {
	for {
		t, err := fs.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		metrics.SetQueueDepth(fs.fun.Name, fs.queue.Len())

		if t.Status().Terminal() {
			// canceled while queued
			continue
		}
		if t.inv.Expired(time.Now()) {
			if t.complete(function.StatusTimedOut, ErrTimedOut) {
				log.Printf("%v timed out while queued", t.inv)
				fs.sched.finish(t)
			}
			continue
		}

		c, err := fs.acquireContext(ctx, t)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			continue
		}

		// dispatch asynchronously and move to the next queue entry
		go fs.execute(c, t)
	}
}

// acquireContext obtains a context for the queue head, honoring backpressure
// and the provisioning retry policy. When the head cannot be dispatched
// (deadline, cancel, retries exhausted) it is completed here and errSkipped
// is returned.
func (fs *funcScheduler) acquireContext(ctx context.Context, t *trackedInvocation) (*pool.ExecContext, error) {
	attempts := 0
	delay := fs.sched.retryDelay
	for {
		c, err := fs.pool.Acquire()
		if err == nil {
			return c, nil
		}

		if errors.Is(err, pool.ErrAtCapacity) {
			// backpressure point: wait for a release instead of
			// growing the pool
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-fs.pool.Released():
			case <-time.After(time.Until(t.inv.Deadline)):
				if t.complete(function.StatusTimedOut, ErrTimedOut) {
					log.Printf("%v timed out waiting for capacity", t.inv)
					fs.sched.finish(t)
				}
				return nil, errSkipped
			}
			if t.Status().Terminal() {
				return nil, errSkipped
			}
			continue
		}

		if errors.Is(err, pool.ErrProvisioning) {
			attempts++
			if attempts > fs.sched.maxRetries {
				log.Printf("Provisioning for %v failed %d times, giving up: %v", t.inv, attempts, err)
				if t.complete(function.StatusFailed, err) {
					fs.sched.finish(t)
				}
				return nil, errSkipped
			}
			log.Printf("Provisioning for %v failed (attempt %d), retrying in %v", t.inv, attempts, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}

		if t.complete(function.StatusFailed, err) {
			fs.sched.finish(t)
		}
		return nil, errSkipped
	}
}

func (fs *funcScheduler) execute(c *pool.ExecContext, t *trackedInvocation) {
	inv := t.inv
	if !t.setRunning(c) {
		// completed concurrently (e.g. canceled): free the context
		fs.pool.Release(c, nil)
		return
	}

	inv.Report.IsWarmStart = c.Warm()
	inv.Report.InitTime = time.Since(inv.Arrival).Seconds()
	metrics.RecordStart(fs.fun.Name, c.Warm())

	report, err := c.Run(fs.sched.ctx, inv)
	if err == nil {
		inv.Report.Result = report.Result
		inv.Report.Output = report.Output
		inv.Report.Duration = report.Duration
		inv.Report.ResponseTime = time.Since(inv.Arrival).Seconds()
		fs.pool.Release(c, nil)
		t.complete(function.StatusSucceeded, nil)
		fs.sched.finish(t)
		return
	}

	// failure or timeout: the context is never reused
	fs.pool.Release(c, err)
	inv.Report.ResponseTime = time.Since(inv.Arrival).Seconds()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("%v exceeded its execution timeout", inv)
		t.complete(function.StatusTimedOut, ErrTimedOut)
	case errors.Is(err, context.Canceled) && t.isCanceled():
		t.complete(function.StatusCanceled, ErrCanceled)
	case errors.Is(err, context.Canceled):
		// interrupted by scheduler shutdown, not by the caller
		t.complete(function.StatusFailed, err)
	case errors.Is(err, pool.ErrHandler):
		t.complete(function.StatusFailed, err)
	default:
		log.Printf("Infrastructure failure for %v: %v", inv, err)
		t.complete(function.StatusFailed, err)
	}
	fs.sched.finish(t)
}
