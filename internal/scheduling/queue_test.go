package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stratus-faas/stratus/internal/function"
)

func testInvocation(f *function.Function, id string) *trackedInvocation {
	now := time.Now()
	return newTracked(&function.Invocation{
		Id:       id,
		Fun:      f,
		Arrival:  now,
		Deadline: now.Add(f.Timeout()),
	})
}

func TestQueueFIFOOrder(t *testing.T) {
	f := &function.Function{Name: "f1", TimeoutSec: 30}
	q := NewFIFOQueue(3)

	for _, id := range []string{"a", "b", "c"} {
		if !q.Enqueue(testInvocation(f, id)) {
			t.Fatalf("enqueue of %s failed", id)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue failed: %v", err)
		}
		if got.inv.Id != want {
			t.Errorf("expected %s, got %s", want, got.inv.Id)
		}
	}
}

func TestQueueBackpressure(t *testing.T) {
	f := &function.Function{Name: "f1", TimeoutSec: 30}
	q := NewFIFOQueue(2)

	if !q.Enqueue(testInvocation(f, "a")) || !q.Enqueue(testInvocation(f, "b")) {
		t.Fatal("enqueue under capacity failed")
	}

	// must return immediately without evicting existing entries
	if q.Enqueue(testInvocation(f, "c")) {
		t.Fatal("enqueue on a full queue should fail")
	}
	if q.Len() != 2 {
		t.Fatalf("expected length 2 after rejection, got %d", q.Len())
	}

	got, err := q.Dequeue(context.Background())
	if err != nil || got.inv.Id != "a" {
		t.Fatalf("expected head 'a', got %v (%v)", got, err)
	}
}

func TestQueueRemoveFreesSlot(t *testing.T) {
	f := &function.Function{Name: "f1", TimeoutSec: 30}
	q := NewFIFOQueue(3)

	a := testInvocation(f, "a")
	b := testInvocation(f, "b")
	c := testInvocation(f, "c")
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)

	if !q.Remove(b) {
		t.Fatal("remove of a queued entry failed")
	}
	if q.Remove(b) {
		t.Error("second remove of the same entry should fail")
	}
	if q.Len() != 2 {
		t.Fatalf("expected length 2 after removal, got %d", q.Len())
	}

	// the freed slot admits a new entry, order of the others preserved
	if !q.Enqueue(testInvocation(f, "d")) {
		t.Fatal("freed slot did not admit a new entry")
	}
	ctx := context.Background()
	for _, want := range []string{"a", "c", "d"} {
		got, err := q.Dequeue(ctx)
		if err != nil || got.inv.Id != want {
			t.Fatalf("expected %s, got %v (%v)", want, got, err)
		}
	}
}

func TestQueueSweep(t *testing.T) {
	f := &function.Function{Name: "f1", TimeoutSec: 30}
	q := NewFIFOQueue(4)

	for _, id := range []string{"a", "b", "c", "d"} {
		q.Enqueue(testInvocation(f, id))
	}

	n := q.Sweep(func(t *trackedInvocation) bool {
		return t.inv.Id == "b" || t.inv.Id == "d"
	})
	if n != 2 {
		t.Fatalf("expected 2 swept entries, got %d", n)
	}
	if q.Len() != 2 {
		t.Fatalf("expected length 2, got %d", q.Len())
	}

	ctx := context.Background()
	for _, want := range []string{"a", "c"} {
		got, err := q.Dequeue(ctx)
		if err != nil || got.inv.Id != want {
			t.Fatalf("expected %s, got %v (%v)", want, got, err)
		}
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	f := &function.Function{Name: "f1", TimeoutSec: 30}
	q := NewFIFOQueue(1)

	go func() {
		time.Sleep(50 * time.Millisecond)
		q.Enqueue(testInvocation(f, "late"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if got.inv.Id != "late" {
		t.Errorf("expected 'late', got %s", got.inv.Id)
	}
}

func TestDequeueCanceled(t *testing.T) {
	q := NewFIFOQueue(1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := q.Dequeue(ctx)
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
}
