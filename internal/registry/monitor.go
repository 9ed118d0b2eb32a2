package registry

import (
	"context"
	"time"

	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// RunMonitor runs the liveness sweep until ctx is cancelled. Each cycle it
// probes every live connection and evicts the ones whose last
// acknowledgment is older than the deadline. This is the only mechanism
// that reclaims connections whose transport died without a clean close.
func (r *Registry) RunMonitor(ctx context.Context) {
	ticker := time.NewTicker(r.probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep performs one monitor cycle. Probing and eviction for different
// connections run in separate goroutines so a slow or unresponsive peer
// cannot stall the sweep for others.
func (r *Registry) Sweep() {
	type probe struct {
		id        string
		transport Transport
		overdue   bool
	}
	cutoff := r.nowMs() - r.deadline.Milliseconds()

	r.mu.RLock()
	probes := make([]probe, 0, len(r.conns))
	for id, c := range r.conns {
		probes = append(probes, probe{
			id:        id,
			transport: c.transport,
			overdue:   c.lastAckMs.Load() < cutoff,
		})
	}
	r.mu.RUnlock()

	for _, p := range probes {
		p := p
		go func() {
			if p.overdue {
				r.evict(p.id, p.transport)
				return
			}
			if err := p.transport.Ping(); err != nil {
				// A transport that cannot even accept a probe is gone.
				r.logger.Debug("probe failed", logpkg.Str("conn_id", p.id), logpkg.Err(err))
				r.evict(p.id, p.transport)
			}
		}()
	}
}

// evict force-closes the transport and removes the connection. Remove is
// idempotent, so racing with a concurrent clean disconnect is harmless.
func (r *Registry) evict(connID string, t Transport) {
	_ = t.Close()
	if channels := r.Remove(connID); channels != nil {
		r.metrics.Evicted()
		r.logger.Info("connection evicted by liveness monitor",
			logpkg.Str("conn_id", connID), logpkg.Int("channels", len(channels)))
	}
}
