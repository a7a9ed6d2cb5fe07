package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"slotd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultStartupTimeout         = 60 * time.Second
	defaultCheckInterval          = 5 * time.Second
	defaultCheckTimeout           = 10 * time.Second
	defaultGracePeriod            = 15 * time.Second
	defaultMaxConsecutiveFailures = 3
	defaultUnhealthyEvictAfter    = 3
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Ports holds one triple per slot; its length is the pool size.
	Ports    []types.PortTriple
	Launcher Launcher
	Prober   Prober

	StartupTimeout time.Duration
	CheckInterval  time.Duration
	CheckTimeout   time.Duration
	GracePeriod    time.Duration

	// MaxConsecutiveFailures bounds one replacement chain before the slot is parked.
	MaxConsecutiveFailures int
	// UnhealthyEvictAfter is the number of failed probes an UNHEALTHY slot may
	// accumulate before it is evicted.
	UnhealthyEvictAfter int
	// SkipReadyProbes disables liveness probing of READY slots; exited workers
	// are still evicted.
	SkipReadyProbes bool

	Publisher EventPublisher
	Logger    zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}
	if cfg.GracePeriod < 0 {
		cfg.GracePeriod = 0
	} else if cfg.GracePeriod == 0 {
		cfg.GracePeriod = defaultGracePeriod
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if cfg.UnhealthyEvictAfter <= 0 {
		cfg.UnhealthyEvictAfter = defaultUnhealthyEvictAfter
	}
	m := &Manager{
		cfg:       cfg,
		reg:       newRegistry(cfg.Ports),
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		startTime: time.Now(),
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}
