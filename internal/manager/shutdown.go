package manager

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Shutdown stops the monitor, refuses further rotations, discards the queue
// and terminates every worker (SIGTERM, then kill after grace). It returns
// once all workers and replacement chains are done, or ctx expires. Only the
// first call does any work.
func (m *Manager) Shutdown(ctx context.Context, grace time.Duration) error {
	first := false
	m.shutdownOnce.Do(func() { first = true })
	if !first {
		return nil
	}
	return m.shutdown(ctx, grace)
}

func (m *Manager) shutdown(ctx context.Context, grace time.Duration) error {
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()

	workers := m.reg.close()
	m.cancel()
	m.log.Info().Int("workers", len(workers)).Dur("grace", grace).Msg("shutting down pool")
	m.publish(EventShutdown, -1, "", map[string]any{"workers": len(workers)})

	var g errgroup.Group
	for _, w := range workers {
		g.Go(func() error { return w.Terminate(grace) })
	}
	termErr := g.Wait()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return termErr
}
