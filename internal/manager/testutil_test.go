package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"slotd/internal/health"
	"slotd/pkg/types"
)

// fakeWorker is an in-memory worker whose exit the test controls.
type fakeWorker struct {
	pid        int
	profile    string
	ports      types.PortTriple
	done       chan struct{}
	once       sync.Once
	terminated atomic.Bool
}

func (w *fakeWorker) PID() int                { return w.pid }
func (w *fakeWorker) Exited() <-chan struct{} { return w.done }
func (w *fakeWorker) Terminate(time.Duration) error {
	w.terminated.Store(true)
	w.exit()
	return nil
}
func (w *fakeWorker) exit() { w.once.Do(func() { close(w.done) }) }

// fakeLauncher records launches and hands out fakeWorkers.
type fakeLauncher struct {
	mu      sync.Mutex
	nextPID int
	fail    map[string]bool
	workers []*fakeWorker
}

func newFakeLauncher() *fakeLauncher { return &fakeLauncher{nextPID: 1000, fail: map[string]bool{}} }

func (l *fakeLauncher) Launch(ctx context.Context, p types.Profile, ports types.PortTriple) (Worker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail[p.Name] {
		return nil, errors.New("launch refused for " + p.Name)
	}
	l.nextPID++
	w := &fakeWorker{pid: l.nextPID, profile: p.Name, ports: ports, done: make(chan struct{})}
	l.workers = append(l.workers, w)
	return w, nil
}

func (l *fakeLauncher) setFail(name string, v bool) {
	l.mu.Lock()
	l.fail[name] = v
	l.mu.Unlock()
}

func (l *fakeLauncher) launched(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, w := range l.workers {
		if w.profile == name {
			n++
		}
	}
	return n
}

func (l *fakeLauncher) all() []*fakeWorker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeWorker(nil), l.workers...)
}

// latest returns the most recent worker launched for a profile.
func (l *fakeLauncher) latest(name string) *fakeWorker {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.workers) - 1; i >= 0; i-- {
		if l.workers[i].profile == name {
			return l.workers[i]
		}
	}
	return nil
}

// fakeProber answers probes from per-profile switches.
type fakeProber struct {
	mu       sync.Mutex
	notReady map[string]bool
	dead     map[string]bool
	// block makes AwaitReady wait for ctx or timeout for listed profiles.
	block map[string]bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{notReady: map[string]bool{}, dead: map[string]bool{}, block: map[string]bool{}}
}

func (p *fakeProber) AwaitReady(ctx context.Context, t health.Target, timeout time.Duration) bool {
	p.mu.Lock()
	notReady, block := p.notReady[t.Name], p.block[t.Name]
	p.mu.Unlock()
	if block {
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}
		return false
	}
	if t.Exited != nil {
		select {
		case <-t.Exited:
			return false
		default:
		}
	}
	return !notReady
}

func (p *fakeProber) CheckAlive(ctx context.Context, t health.Target, timeout time.Duration) bool {
	p.mu.Lock()
	dead := p.dead[t.Name]
	p.mu.Unlock()
	if t.Exited != nil {
		select {
		case <-t.Exited:
			return false
		default:
		}
	}
	return !dead
}

func (p *fakeProber) setNotReady(name string, v bool) {
	p.mu.Lock()
	p.notReady[name] = v
	p.mu.Unlock()
}

func (p *fakeProber) setDead(name string, v bool) {
	p.mu.Lock()
	p.dead[name] = v
	p.mu.Unlock()
}

func profs(names ...string) []types.Profile {
	out := make([]types.Profile, len(names))
	for i, n := range names {
		out[i] = types.Profile{Name: n, Path: "/profiles/" + n + ".json"}
	}
	return out
}

type harness struct {
	m   *Manager
	l   *fakeLauncher
	p   *fakeProber
	pub *MemoryPublisher
}

func newHarness(t *testing.T, slots int, mutate ...func(*ManagerConfig)) *harness {
	t.Helper()
	ports, err := AssignPorts(slots, types.PortTriple{API: 3100, Stream: 3200, Debug: 9222}, 1)
	if err != nil {
		t.Fatalf("AssignPorts: %v", err)
	}
	h := &harness{l: newFakeLauncher(), p: newFakeProber(), pub: NewMemoryPublisher()}
	cfg := ManagerConfig{
		Ports:          ports,
		Launcher:       h.l,
		Prober:         h.p,
		StartupTimeout: 200 * time.Millisecond,
		CheckInterval:  time.Hour,
		CheckTimeout:   100 * time.Millisecond,
		GracePeriod:    10 * time.Millisecond,
		Publisher:      h.pub,
	}
	for _, f := range mutate {
		f(&cfg)
	}
	h.m = NewWithConfig(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.m.Shutdown(ctx, 10*time.Millisecond)
	})
	return h
}

func (h *harness) slot(i int) types.SlotStatus { return h.m.Status().Slots[i] }

func (h *harness) refOf(i int) SlotRef {
	s := h.slot(i)
	return SlotRef{Index: i, Generation: s.Generation, Profile: s.Profile, BaseURL: s.Ports.BaseURL()}
}
