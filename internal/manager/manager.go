package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"slotd/internal/health"
	"slotd/pkg/types"
)

type Manager struct {
	cfg       ManagerConfig
	reg       *registry
	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time

	// ctx is cancelled at shutdown; every launch and readiness wait derives from it.
	ctx    context.Context
	cancel context.CancelFunc
	// mu guards stopping and orders wg.Add against Shutdown's wg.Wait.
	mu       sync.Mutex
	stopping bool
	// wg tracks replacement chains and the monitor.
	wg sync.WaitGroup

	monitorOnce  sync.Once
	shutdownOnce sync.Once

	evictions atomic.Uint64
	launches  atomic.Uint64
}

// New constructs a Manager with default timings.
func New(ports []types.PortTriple, l Launcher, p Prober) *Manager {
	return NewWithConfig(ManagerConfig{Ports: ports, Launcher: l, Prober: p})
}

// PoolSize is the fixed number of slots.
func (m *Manager) PoolSize() int { return len(m.reg.slots) }

// Ready reports whether at least one slot can serve traffic.
func (m *Manager) Ready() bool { return m.reg.readyCount() > 0 }

// ReadyCount returns the number of READY slots with a live worker.
func (m *Manager) ReadyCount() int { return m.reg.readyCount() }

// SelectReady picks the next READY slot in round-robin order.
func (m *Manager) SelectReady() (SlotRef, bool) { return m.reg.selectReady() }

// Bound returns refs of every slot holding a live worker, ready or not.
func (m *Manager) Bound() []SlotRef { return m.reg.bound() }

// QueueSnapshot lists queued profile names, head first.
func (m *Manager) QueueSnapshot() []string {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	return m.reg.queue.Names()
}

// ShuttingDown reports whether Shutdown has begun.
func (m *Manager) ShuttingDown() bool { return m.reg.isClosed() }

func (m *Manager) target(ref SlotRef, w Worker) health.Target {
	t := health.Target{Name: ref.Profile, BaseURL: ref.BaseURL}
	if w != nil {
		t.Exited = w.Exited()
	}
	return t
}
