package manager

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"slotd/pkg/types"
)

// registry owns the slots, the rotation queue and the round-robin cursor.
// Every method is a short critical section; none performs I/O.
type registry struct {
	mu     sync.Mutex
	slots  []*slot
	queue  *RotationQueue
	cursor int
	closed bool
}

func newRegistry(ports []types.PortTriple) *registry {
	r := &registry{queue: newRotationQueue(nil)}
	r.slots = make([]*slot, len(ports))
	for i, p := range ports {
		r.slots[i] = &slot{index: i, ports: p, state: StateEmpty}
	}
	return r
}

// seed binds the first len(slots) profiles in order and queues the rest.
// Slots without a profile stay EMPTY.
func (r *registry) seed(profiles []types.Profile) []ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ticket
	for i, s := range r.slots {
		if i >= len(profiles) {
			break
		}
		p := profiles[i]
		s.profile = &p
		out = append(out, r.bindLocked(s))
	}
	if len(profiles) > len(r.slots) {
		r.queue = newRotationQueue(profiles[len(r.slots):])
	}
	r.observeLocked()
	return out
}

func (r *registry) bindLocked(s *slot) ticket {
	s.generation++
	s.state = StateLaunching
	s.launchID = uuid.NewString()
	s.readySince = time.Time{}
	s.probeFailures = 0
	return ticket{index: s.index, generation: s.generation, profile: *s.profile, ports: s.ports, launchID: s.launchID}
}

// selectReady returns the next READY slot with a live worker at or after the
// cursor and advances the cursor past it.
func (r *registry) selectReady() (SlotRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.slots)
	if r.closed || n == 0 {
		return SlotRef{}, false
	}
	for k := 0; k < n; k++ {
		i := (r.cursor + k) % n
		s := r.slots[i]
		if s.state != StateReady || exited(s.worker) {
			continue
		}
		r.cursor = (i + 1) % n
		return s.ref(), true
	}
	return SlotRef{}, false
}

// beginEvict marks a READY or UNHEALTHY slot EVICTING and detaches its worker.
// It refuses stale generations and slots already being replaced.
func (r *registry) beginEvict(ref SlotRef, reason string) (Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(ref.Index)
	if !ok || r.closed || s.generation != ref.Generation {
		return nil, false
	}
	if s.state != StateReady && s.state != StateUnhealthy {
		return nil, false
	}
	w := s.worker
	s.worker = nil
	s.state = StateEvicting
	s.lastErr = reason
	s.probeFailures = 0
	r.observeLocked()
	return w, true
}

// rotate pushes the outgoing profile to the tail, pops the head and binds it
// to the EVICTING slot at a new generation.
func (r *registry) rotate(index int) (ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(index)
	if !ok || r.closed || s.state != StateEvicting {
		return ticket{}, false
	}
	if s.profile != nil {
		r.queue.Push(*s.profile)
	}
	next, ok := r.queue.Pop()
	if !ok {
		s.profile = nil
		s.state = StateEmpty
		r.observeLocked()
		return ticket{}, false
	}
	s.profile = &next
	t := r.bindLocked(s)
	r.observeLocked()
	return t, true
}

// attach records a freshly launched worker. A false return means the caller
// still owns w and must terminate it.
func (r *registry) attach(t ticket, w Worker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(t.index)
	if !ok || r.closed || s.generation != t.generation || s.state != StateLaunching {
		return false
	}
	s.worker = w
	return true
}

// promote moves a LAUNCHING slot to READY.
func (r *registry) promote(t ticket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(t.index)
	if !ok || r.closed || s.generation != t.generation || s.state != StateLaunching {
		return false
	}
	s.state = StateReady
	s.failures = 0
	s.probeFailures = 0
	s.lastErr = ""
	s.readySince = time.Now()
	r.observeLocked()
	return true
}

// activationFailed records a failed launch or readiness wait. With park set the
// slot becomes UNHEALTHY and keeps whatever worker it has; otherwise it becomes
// EVICTING and the worker is detached and returned for termination.
func (r *registry) activationFailed(t ticket, reason string, park bool) (Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(t.index)
	if !ok || r.closed || s.generation != t.generation || s.state != StateLaunching {
		return nil, false
	}
	s.failures++
	s.lastErr = reason
	if park {
		s.state = StateUnhealthy
		r.observeLocked()
		return nil, true
	}
	w := s.worker
	s.worker = nil
	s.state = StateEvicting
	r.observeLocked()
	return w, true
}

// demote moves a READY slot to UNHEALTHY after a failed liveness probe.
func (r *registry) demote(ref SlotRef, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(ref.Index)
	if !ok || r.closed || s.generation != ref.Generation || s.state != StateReady {
		return false
	}
	s.state = StateUnhealthy
	s.probeFailures = 1
	s.lastErr = reason
	r.observeLocked()
	return true
}

// restore moves an UNHEALTHY slot back to READY without a relaunch.
func (r *registry) restore(ref SlotRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(ref.Index)
	if !ok || r.closed || s.generation != ref.Generation || s.state != StateUnhealthy || exited(s.worker) {
		return false
	}
	s.state = StateReady
	s.failures = 0
	s.probeFailures = 0
	s.lastErr = ""
	s.readySince = time.Now()
	r.observeLocked()
	return true
}

// probeFailed bumps the probe-failure counter of an UNHEALTHY slot and returns it.
func (r *registry) probeFailed(ref SlotRef) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slotLocked(ref.Index)
	if !ok || r.closed || s.generation != ref.Generation || s.state != StateUnhealthy {
		return 0, false
	}
	s.probeFailures++
	return s.probeFailures, true
}

// candidate is a monitor snapshot of one slot.
type candidate struct {
	ref    SlotRef
	state  State
	worker Worker
}

func (r *registry) candidates() []candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	var out []candidate
	for _, s := range r.slots {
		if s.state == StateReady || s.state == StateUnhealthy {
			out = append(out, candidate{ref: s.ref(), state: s.state, worker: s.worker})
		}
	}
	return out
}

// close refuses all further mutations, marks every slot TERMINATED, clears the
// queue and returns the detached workers.
func (r *registry) close() []Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var ws []Worker
	for _, s := range r.slots {
		if s.worker != nil {
			ws = append(ws, s.worker)
			s.worker = nil
		}
		s.state = StateTerminated
	}
	r.queue.Clear()
	r.observeLocked()
	return ws
}

func (r *registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *registry) readyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.slots {
		if s.state == StateReady && !exited(s.worker) {
			n++
		}
	}
	return n
}

// bound returns refs of slots that hold a live worker.
func (r *registry) bound() []SlotRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SlotRef
	for _, s := range r.slots {
		switch s.state {
		case StateLaunching, StateReady, StateUnhealthy:
			if !exited(s.worker) {
				out = append(out, s.ref())
			}
		}
	}
	return out
}

func (r *registry) slotLocked(i int) (*slot, bool) {
	if i < 0 || i >= len(r.slots) {
		return nil, false
	}
	return r.slots[i], true
}

func (r *registry) observeLocked() {
	counts := make(map[State]int, 6)
	for _, s := range r.slots {
		counts[s.state]++
	}
	for _, st := range allStates {
		slotsGauge.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	queueLength.Set(float64(r.queue.Len()))
}

var allStates = []State{StateEmpty, StateLaunching, StateReady, StateUnhealthy, StateEvicting, StateTerminated}
