package pool

import (
	"time"

	"github.com/stratus-faas/stratus/internal/config"
	"github.com/stratus-faas/stratus/internal/metrics"
)

// Supervisor periodically scans the pools: it collects idle contexts past
// their idle timeout, terminates busy contexts past their deadline and
// reconciles desired warm-pool sizes. It runs off the request path.
type Supervisor struct {
	Interval time.Duration
	mgr      *Manager
	stop     chan bool
}

// StartSupervisor creates a supervisor for mgr and starts its scan loop.
func StartSupervisor(mgr *Manager) *Supervisor {
	s := &Supervisor{
		Interval: time.Duration(config.GetInt(config.SUPERVISOR_INTERVAL, 30)) * time.Second,
		mgr:      mgr,
		stop:     make(chan bool),
	}
	go s.run()
	return s
}

func (s *Supervisor) run() {
	ticker := time.NewTicker(s.Interval)
	for {
		select {
		case <-ticker.C:
			s.Scan()
		case <-s.stop:
			ticker.Stop()
			return
		}
	}
}

// Scan performs one supervision pass over every pool.
func (s *Supervisor) Scan() {
	now := time.Now()
	for _, p := range s.mgr.Pools() {
		p.CollectExpired(now)
		p.TerminateOverdue(now)
		p.Reconcile()

		busy, idle := p.Counts()
		metrics.SetContextCounts(p.Function().Name, busy, idle)
	}
}

func (s *Supervisor) Stop() {
	s.stop <- true
}
