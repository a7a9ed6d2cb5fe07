package manager

import (
	"context"
	"time"

	"slotd/internal/health"
	"slotd/pkg/types"
)

// State is the lifecycle state of a slot.
type State string

const (
	StateEmpty      State = "empty"
	StateLaunching  State = "launching"
	StateReady      State = "ready"
	StateUnhealthy  State = "unhealthy"
	StateEvicting   State = "evicting"
	StateTerminated State = "terminated"
)

// Worker is a running worker process as seen by the manager.
type Worker interface {
	PID() int
	// Exited is closed once the process is gone.
	Exited() <-chan struct{}
	// Terminate stops the process, gracefully first, and returns once it is reaped.
	Terminate(grace time.Duration) error
}

// Launcher starts a worker for a profile on a port triple. It must not wait
// for readiness.
type Launcher interface {
	Launch(ctx context.Context, p types.Profile, ports types.PortTriple) (Worker, error)
}

// LaunchFunc adapts a function to Launcher.
type LaunchFunc func(ctx context.Context, p types.Profile, ports types.PortTriple) (Worker, error)

func (f LaunchFunc) Launch(ctx context.Context, p types.Profile, ports types.PortTriple) (Worker, error) {
	return f(ctx, p, ports)
}

// Prober observes worker health. Implemented by *health.Prober.
type Prober interface {
	AwaitReady(ctx context.Context, t health.Target, timeout time.Duration) bool
	CheckAlive(ctx context.Context, t health.Target, timeout time.Duration) bool
}

// SlotRef is an immutable handle on a slot at a specific generation. Eviction
// through a stale ref is a no-op.
type SlotRef struct {
	Index      int
	Generation uint64
	Profile    string
	BaseURL    string
}

// slot is one fixed position in the pool. Guarded by registry.mu.
type slot struct {
	index         int
	ports         types.PortTriple
	profile       *types.Profile
	worker        Worker
	state         State
	failures      int // consecutive failed activations
	probeFailures int // consecutive failed liveness probes while unhealthy
	generation    uint64
	launchID      string
	lastErr       string
	readySince    time.Time
}

func (s *slot) ref() SlotRef {
	r := SlotRef{Index: s.index, Generation: s.generation, BaseURL: s.ports.BaseURL()}
	if s.profile != nil {
		r.Profile = s.profile.Name
	}
	return r
}

func (s *slot) profileName() string {
	if s.profile == nil {
		return ""
	}
	return s.profile.Name
}

// ticket describes one launch the manager is about to perform.
type ticket struct {
	index      int
	generation uint64
	profile    types.Profile
	ports      types.PortTriple
	launchID   string
}

func (t ticket) ref() SlotRef {
	return SlotRef{Index: t.index, Generation: t.generation, Profile: t.profile.Name, BaseURL: t.ports.BaseURL()}
}

func exited(w Worker) bool {
	if w == nil {
		return true
	}
	select {
	case <-w.Exited():
		return true
	default:
		return false
	}
}
