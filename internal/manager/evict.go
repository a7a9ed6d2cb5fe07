package manager

import (
	"context"
	"fmt"
)

// Eviction reasons used as metric labels.
const (
	ReasonRequestFailure = "request_failure"
	ReasonExited         = "exited"
	ReasonUnhealthy      = "unhealthy"
	ReasonParked         = "parked"
)

// Evict retires the worker behind ref and replaces it in the background with
// the next queued profile. It returns false, with no side effects, when ref is
// stale or the slot is not READY or UNHEALTHY.
func (m *Manager) Evict(ref SlotRef, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return false
	}
	old, ok := m.reg.beginEvict(ref, reason)
	if !ok {
		return false
	}
	m.evictions.Add(1)
	evictionsTotal.WithLabelValues(reason).Inc()
	m.log.Warn().Int("slot", ref.Index).Str("profile", ref.Profile).Uint64("generation", ref.Generation).Str("reason", reason).Msg("evicting slot")
	m.publish(EventEvict, ref.Index, ref.Profile, map[string]any{"reason": reason, "generation": ref.Generation})
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t, w, ok, err := m.replace(m.ctx, ref.Index, old)
		if !ok {
			return
		}
		m.runChain(t, w, err, 1)
	}()
	return true
}

// goChain runs f as a tracked background task unless shutdown has begun.
func (m *Manager) goChain(f func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		f()
	}()
	return true
}

// replace terminates old, rotates the slot to the next queued profile and
// launches it. ok is false when the slot can no longer be rotated; err carries
// a launch failure for the new ticket.
func (m *Manager) replace(ctx context.Context, index int, old Worker) (t ticket, w Worker, ok bool, err error) {
	if old != nil {
		if terr := old.Terminate(m.cfg.GracePeriod); terr != nil {
			m.log.Warn().Err(terr).Int("slot", index).Int("pid", old.PID()).Msg("terminate failed")
		}
	}
	t, ok = m.reg.rotate(index)
	if !ok {
		return ticket{}, nil, false, nil
	}
	m.log.Info().Int("slot", index).Str("profile", t.profile.Name).Uint64("generation", t.generation).Msg("slot rotated")
	m.publish(EventRotate, index, t.profile.Name, map[string]any{"generation": t.generation})
	w, err = m.launch(ctx, t)
	return t, w, true, err
}

// launch starts a worker for t and attaches it to the slot.
func (m *Manager) launch(ctx context.Context, t ticket) (Worker, error) {
	m.launches.Add(1)
	m.publish(EventLaunchStart, t.index, t.profile.Name, map[string]any{
		"generation": t.generation,
		"launch_id":  t.launchID,
		"api_port":   t.ports.API,
	})
	w, err := m.cfg.Launcher.Launch(ctx, t.profile, t.ports)
	if err == nil && w == nil {
		err = fmt.Errorf("launcher returned no worker")
	}
	if err != nil {
		launchesTotal.WithLabelValues("failed").Inc()
		m.log.Error().Err(err).Int("slot", t.index).Str("profile", t.profile.Name).Msg("launch failed")
		m.publish(EventLaunchFailed, t.index, t.profile.Name, map[string]any{"error": err.Error()})
		return nil, err
	}
	if !m.reg.attach(t, w) {
		_ = w.Terminate(m.cfg.GracePeriod)
		return nil, ErrShutdownInProgress
	}
	return w, nil
}

// activate waits for w to become ready and promotes the slot. It returns
// false only when readiness was not reached.
func (m *Manager) activate(ctx context.Context, t ticket, w Worker) bool {
	if !m.cfg.Prober.AwaitReady(ctx, m.target(t.ref(), w), m.cfg.StartupTimeout) {
		launchesTotal.WithLabelValues("timeout").Inc()
		m.log.Warn().Int("slot", t.index).Str("profile", t.profile.Name).Dur("timeout", m.cfg.StartupTimeout).Msg("worker not ready")
		m.publish(EventReadinessTimeout, t.index, t.profile.Name, map[string]any{"generation": t.generation})
		return false
	}
	if m.reg.promote(t) {
		launchesTotal.WithLabelValues("ready").Inc()
		m.log.Info().Int("slot", t.index).Str("profile", t.profile.Name).Int("pid", w.PID()).Msg("slot ready")
		m.publish(EventReady, t.index, t.profile.Name, map[string]any{"generation": t.generation, "pid": w.PID()})
	}
	return true
}

// runChain keeps replacing a slot until a worker becomes ready, the chain
// reaches MaxConsecutiveFailures (the slot is parked), or shutdown begins.
func (m *Manager) runChain(t ticket, w Worker, launchErr error, attempt int) {
	for {
		if launchErr == nil && m.activate(m.ctx, t, w) {
			return
		}
		old, parked, ok := m.fail(t, launchErr, attempt)
		if !ok || parked {
			return
		}
		attempt++
		var more bool
		t, w, more, launchErr = m.replace(m.ctx, t.index, old)
		if !more {
			return
		}
	}
}

// fail records a failed activation. The slot is parked once attempt reaches
// the chain bound; otherwise the detached worker is returned for termination.
func (m *Manager) fail(t ticket, launchErr error, attempt int) (old Worker, parked, ok bool) {
	reason := "readiness timeout"
	if launchErr != nil {
		reason = launchErr.Error()
	}
	parked = attempt >= m.cfg.MaxConsecutiveFailures
	old, ok = m.reg.activationFailed(t, reason, parked)
	if ok && parked {
		m.log.Error().Int("slot", t.index).Str("profile", t.profile.Name).Int("attempts", attempt).Str("reason", reason).Msg("slot parked")
		m.publish(EventParked, t.index, t.profile.Name, map[string]any{"attempts": attempt, "reason": reason})
	}
	return old, parked, ok
}
