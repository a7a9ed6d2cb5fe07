package manager

import (
	"context"

	"golang.org/x/sync/errgroup"

	"slotd/pkg/types"
)

// Seed binds the first PoolSize profiles to slots in order, queues the rest,
// launches every bound slot concurrently and waits for readiness. Slots that
// fail are rotated and relaunched before Seed returns; the replacement's
// readiness wait continues in the background.
func (m *Manager) Seed(ctx context.Context, profiles []types.Profile) error {
	if len(profiles) == 0 {
		return noProfilesError{}
	}
	if m.ShuttingDown() {
		return ErrShutdownInProgress
	}
	sctx, cancel := context.WithCancel(m.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tickets := m.reg.seed(profiles)
	queued := m.QueueSnapshot()
	m.log.Info().Int("slots", m.PoolSize()).Int("seeded", len(tickets)).Int("queued", len(queued)).Msg("seeding pool")
	for _, t := range tickets {
		m.publish(EventSeed, t.index, t.profile.Name, map[string]any{"generation": t.generation, "api_port": t.ports.API})
	}
	if len(tickets) < m.PoolSize() {
		m.log.Warn().Int("profiles", len(profiles)).Int("slots", m.PoolSize()).Msg("fewer profiles than slots; extra slots stay empty")
	}

	type outcome struct {
		t     ticket
		err   error
		ready bool
	}
	results := make([]outcome, len(tickets))
	var g errgroup.Group
	for i, t := range tickets {
		g.Go(func() error {
			w, err := m.launch(sctx, t)
			results[i] = outcome{t: t, err: err}
			if err == nil {
				results[i].ready = m.activate(sctx, t, w)
			}
			return nil
		})
	}
	_ = g.Wait()

	var rg errgroup.Group
	for _, r := range results {
		if r.ready {
			continue
		}
		rg.Go(func() error {
			old, parked, ok := m.fail(r.t, r.err, 1)
			if !ok || parked {
				return nil
			}
			t, w, more, err := m.replace(sctx, r.t.index, old)
			if !more {
				return nil
			}
			m.goChain(func() { m.runChain(t, w, err, 2) })
			return nil
		})
	}
	_ = rg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info().Int("ready", m.ReadyCount()).Int("slots", m.PoolSize()).Msg("pool seeded")
	return nil
}
