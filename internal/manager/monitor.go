package manager

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// StartMonitor probes bound slots every CheckInterval until ctx is done or
// the manager shuts down. Calling it more than once has no effect.
func (m *Manager) StartMonitor(ctx context.Context) {
	m.monitorOnce.Do(func() {
		mctx, cancel := context.WithCancel(m.ctx)
		stop := context.AfterFunc(ctx, cancel)
		started := m.goChain(func() {
			defer stop()
			defer cancel()
			t := time.NewTicker(m.cfg.CheckInterval)
			defer t.Stop()
			for {
				select {
				case <-mctx.Done():
					return
				case <-t.C:
					m.CheckOnce(mctx)
				}
			}
		})
		if !started {
			stop()
			cancel()
		}
	})
}

// CheckOnce runs a single monitor pass. Candidates are snapshotted under the
// registry lock and probed concurrently outside it.
func (m *Manager) CheckOnce(ctx context.Context) {
	var g errgroup.Group
	for _, c := range m.reg.candidates() {
		g.Go(func() error {
			m.check(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) check(ctx context.Context, c candidate) {
	switch c.state {
	case StateReady:
		if exited(c.worker) {
			m.Evict(c.ref, ReasonExited)
			return
		}
		if m.cfg.SkipReadyProbes {
			return
		}
		if m.cfg.Prober.CheckAlive(ctx, m.target(c.ref, c.worker), m.cfg.CheckTimeout) || ctx.Err() != nil {
			return
		}
		if m.reg.demote(c.ref, "liveness probe failed") {
			m.log.Warn().Int("slot", c.ref.Index).Str("profile", c.ref.Profile).Msg("slot unhealthy")
			m.publish(EventDemoted, c.ref.Index, c.ref.Profile, nil)
		}
	case StateUnhealthy:
		if c.worker == nil {
			m.Evict(c.ref, ReasonParked)
			return
		}
		if exited(c.worker) {
			m.Evict(c.ref, ReasonExited)
			return
		}
		if m.cfg.Prober.CheckAlive(ctx, m.target(c.ref, c.worker), m.cfg.CheckTimeout) {
			if m.reg.restore(c.ref) {
				m.log.Info().Int("slot", c.ref.Index).Str("profile", c.ref.Profile).Msg("slot recovered")
				m.publish(EventRecovered, c.ref.Index, c.ref.Profile, nil)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if n, ok := m.reg.probeFailed(c.ref); ok && n >= m.cfg.UnhealthyEvictAfter {
			m.Evict(c.ref, ReasonUnhealthy)
		}
	}
}
