package manager

import (
	"time"

	"slotd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	r := m.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	resp := types.StatusResponse{
		PoolSize:       len(r.slots),
		Queue:          r.queue.Names(),
		EvictionsTotal: m.evictions.Load(),
		LaunchesTotal:  m.launches.Load(),
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		ShuttingDown:   r.closed,
	}
	resp.Slots = make([]types.SlotStatus, 0, len(r.slots))
	for _, s := range r.slots {
		st := types.SlotStatus{
			Index:      s.index,
			State:      string(s.state),
			Profile:    s.profileName(),
			Ports:      s.ports,
			Generation: s.generation,
			LaunchID:   s.launchID,
			Failures:   s.failures,
			LastError:  s.lastErr,
		}
		if s.worker != nil {
			st.PID = s.worker.PID()
		}
		if !s.readySince.IsZero() {
			st.ReadySince = s.readySince.Unix()
		}
		if s.state == StateReady && !exited(s.worker) {
			resp.ReadyCount++
		}
		resp.Slots = append(resp.Slots, st)
	}
	return resp
}

// Readiness summarizes the pool for the /ready probe.
func (m *Manager) Readiness() types.ReadyResponse {
	r := m.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	resp := types.ReadyResponse{
		Status:         "degraded",
		ReadySlots:     []string{},
		UnhealthySlots: []string{},
		TotalSlots:     len(r.slots),
	}
	for _, s := range r.slots {
		if s.profile == nil {
			continue
		}
		if s.state == StateReady && !exited(s.worker) {
			resp.ReadySlots = append(resp.ReadySlots, s.profile.Name)
			continue
		}
		resp.UnhealthySlots = append(resp.UnhealthySlots, s.profile.Name)
	}
	if len(resp.ReadySlots) > 0 && !r.closed {
		resp.Status = "ready"
	}
	return resp
}
