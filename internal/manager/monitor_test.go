package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_DemoteThenRecover(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.m.Seed(context.Background(), profs("a", "b")))
	require.Equal(t, 1, h.m.ReadyCount())

	h.p.setDead("a", true)
	h.m.CheckOnce(context.Background())
	assert.Equal(t, string(StateUnhealthy), h.slot(0).State)
	assert.Equal(t, 0, h.m.ReadyCount())
	_, ok := h.m.SelectReady()
	assert.False(t, ok)
	assert.Equal(t, 1, h.pub.Count(EventDemoted))

	h.p.setDead("a", false)
	h.m.CheckOnce(context.Background())
	assert.Equal(t, string(StateReady), h.slot(0).State)
	assert.Equal(t, 1, h.pub.Count(EventRecovered))
	// recovery keeps the same worker
	assert.Equal(t, 1, h.l.launched("a"))
	assert.Equal(t, 0, h.l.launched("b"))
}

func TestMonitor_ExitedWorkerIsEvicted(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.m.Seed(context.Background(), profs("a", "b")))

	h.l.latest("a").exit()
	h.m.CheckOnce(context.Background())
	require.Eventually(t, func() bool {
		s := h.slot(0)
		return s.Profile == "b" && s.State == string(StateReady)
	}, settle, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, h.m.QueueSnapshot())
	assert.EqualValues(t, 1, h.m.Status().EvictionsTotal)
}

func TestMonitor_UnhealthyEvictAfter(t *testing.T) {
	h := newHarness(t, 1, func(c *ManagerConfig) { c.UnhealthyEvictAfter = 3 })
	require.NoError(t, h.m.Seed(context.Background(), profs("a", "b")))
	first := h.l.latest("a")

	h.p.setDead("a", true)
	h.m.CheckOnce(context.Background()) // demote, 1 failure
	h.m.CheckOnce(context.Background()) // 2
	assert.Equal(t, string(StateUnhealthy), h.slot(0).State)
	assert.Equal(t, 0, h.l.launched("b"))

	h.m.CheckOnce(context.Background()) // 3, evict
	require.Eventually(t, func() bool {
		s := h.slot(0)
		return s.Profile == "b" && s.State == string(StateReady)
	}, settle, 5*time.Millisecond)
	assert.True(t, first.terminated.Load())
}

func TestMonitor_ParkedSlotIsRetried(t *testing.T) {
	h := newHarness(t, 1, func(c *ManagerConfig) { c.MaxConsecutiveFailures = 1 })
	h.l.setFail("a", true)
	require.NoError(t, h.m.Seed(context.Background(), profs("a", "b")))

	s := h.slot(0)
	assert.Equal(t, string(StateUnhealthy), s.State)
	assert.Equal(t, "a", s.Profile)
	assert.Zero(t, s.PID)
	assert.Equal(t, 1, h.pub.Count(EventParked))

	h.m.CheckOnce(context.Background())
	require.Eventually(t, func() bool {
		s := h.slot(0)
		return s.Profile == "b" && s.State == string(StateReady)
	}, settle, 5*time.Millisecond)
}

func TestMonitor_SkipReadyProbes(t *testing.T) {
	h := newHarness(t, 1, func(c *ManagerConfig) { c.SkipReadyProbes = true })
	require.NoError(t, h.m.Seed(context.Background(), profs("a")))

	h.p.setDead("a", true)
	h.m.CheckOnce(context.Background())
	assert.Equal(t, string(StateReady), h.slot(0).State)
}

func TestStartMonitor_Ticks(t *testing.T) {
	h := newHarness(t, 1, func(c *ManagerConfig) { c.CheckInterval = 10 * time.Millisecond })
	require.NoError(t, h.m.Seed(context.Background(), profs("a")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.m.StartMonitor(ctx)
	h.m.StartMonitor(ctx)

	h.p.setDead("a", true)
	require.Eventually(t, func() bool { return h.pub.Count(EventDemoted) >= 1 }, settle, 5*time.Millisecond)
}

func TestStartMonitor_AfterShutdown(t *testing.T) {
	h := newHarness(t, 1, func(c *ManagerConfig) { c.CheckInterval = 5 * time.Millisecond })
	require.NoError(t, h.m.Seed(context.Background(), profs("a")))
	require.NoError(t, h.m.Shutdown(context.Background(), time.Millisecond))

	h.m.StartMonitor(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, string(StateTerminated), h.slot(0).State)
}
