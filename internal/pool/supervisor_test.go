package pool

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stratus-faas/stratus/internal/config"
)

func TestSupervisorScanEvictsIdleContexts(t *testing.T) {
	viper.Set(config.POOL_IDLE_TIMEOUT, 0)
	defer viper.Reset()

	prov := &fakeProvisioner{}
	mgr := NewManager(prov)
	s := &Supervisor{Interval: time.Hour, mgr: mgr, stop: make(chan bool)}

	f := testFunction(2)
	p := mgr.GetPool(f)
	c, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	p.Release(c, nil)

	// idle timeout of zero: the context is already expired
	time.Sleep(5 * time.Millisecond)
	s.Scan()

	if c.State() != StateDead {
		t.Errorf("idle context should have been collected, got %v", c.State())
	}
	_, idle := p.Counts()
	if idle != 0 {
		t.Errorf("expected empty warm set after scan, got %d", idle)
	}
	waitForDestroyed(t, prov, 1)
}

func TestSupervisorScanReconcilesWarmPool(t *testing.T) {
	prov := &fakeProvisioner{}
	mgr := NewManager(prov)
	s := &Supervisor{Interval: time.Hour, mgr: mgr, stop: make(chan bool)}

	f := testFunction(4)
	f.DesiredWarm = 2
	p := mgr.GetPool(f)

	s.Scan()
	_, idle := p.Counts()
	if idle != 2 {
		t.Fatalf("expected 2 pre-warmed contexts, got %d", idle)
	}

	// a second scan must not overshoot
	s.Scan()
	_, idle = p.Counts()
	if idle != 2 {
		t.Errorf("reconcile overshot the warm target: %d", idle)
	}
}

func TestManagerRemovePool(t *testing.T) {
	prov := &fakeProvisioner{}
	mgr := NewManager(prov)

	f := testFunction(2)
	p := mgr.GetPool(f)
	c, _ := p.Acquire()
	p.Release(c, nil)

	mgr.RemovePool(f.Name)
	waitForDestroyed(t, prov, 1)

	if len(mgr.Pools()) != 0 {
		t.Error("pool was not removed")
	}
	// a new pool for the same name starts empty
	p2 := mgr.GetPool(f)
	busy, idle := p2.Counts()
	if busy != 0 || idle != 0 {
		t.Errorf("fresh pool should be empty, got %d/%d", busy, idle)
	}
}
