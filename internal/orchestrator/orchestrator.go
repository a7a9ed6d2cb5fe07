// Package orchestrator wires configuration, the slot manager, the router and
// the HTTP surface into one coordinator lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"slotd/internal/config"
	"slotd/internal/health"
	"slotd/internal/httpapi"
	"slotd/internal/launcher"
	"slotd/internal/manager"
	"slotd/internal/router"
	"slotd/pkg/types"
)

// Options wires an Orchestrator. Launcher and Prober default to the
// subprocess launcher and HTTP prober built from Config.
type Options struct {
	Config    config.Config
	Profiles  []types.Profile
	Launcher  manager.Launcher
	Prober    manager.Prober
	Publisher manager.EventPublisher
	Logger    zerolog.Logger
}

type Orchestrator struct {
	cfg      config.Config
	profiles []types.Profile
	mgr      *manager.Manager
	rt       *router.Router
	procs    *launcher.Launcher
	log      zerolog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	draining   atomic.Bool

	srv       *http.Server
	ln        net.Listener
	serveDone chan struct{}
	serveErr  error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds the manager and router. Nothing is launched until Start.
func New(opts Options) (*Orchestrator, error) {
	cfg := opts.Config
	cfg.ApplyDefaults()
	pool := cfg.PoolSize
	if pool <= 0 {
		pool = len(opts.Profiles)
	}
	if pool <= 0 {
		return nil, errors.New("no profiles available and pool_size not set")
	}
	ports, err := manager.AssignPorts(pool, types.PortTriple{
		API:    cfg.BaseAPIPort,
		Stream: cfg.BaseStreamPort,
		Debug:  cfg.BaseDebugPort,
	}, cfg.PortStep)
	if err != nil {
		return nil, fmt.Errorf("assign ports: %w", err)
	}

	o := &Orchestrator{
		cfg:       cfg,
		profiles:  append([]types.Profile(nil), opts.Profiles...),
		log:       opts.Logger,
		serveDone: make(chan struct{}),
	}
	o.baseCtx, o.baseCancel = context.WithCancel(context.Background())

	l := opts.Launcher
	if l == nil {
		burst := cfg.SpawnBurst
		if burst <= 0 {
			burst = pool
		}
		o.procs = launcher.New(launcher.Options{
			Command:       cfg.WorkerCommand,
			Args:          cfg.WorkerArgs,
			Dir:           cfg.WorkerDir,
			Env:           cfg.WorkerEnv,
			Headless:      *cfg.Headless,
			LogDir:        cfg.LogDir,
			LogMaxSizeMB:  cfg.LogMaxSizeMB,
			LogMaxBackups: cfg.LogMaxBackups,
			SpawnRate:     cfg.SpawnRate,
			SpawnBurst:    burst,
			Logger:        o.log.With().Str("component", "launcher").Logger(),
		})
		l = manager.LaunchFunc(func(ctx context.Context, p types.Profile, pt types.PortTriple) (manager.Worker, error) {
			proc, err := o.procs.Launch(ctx, p, pt)
			if err != nil {
				return nil, err
			}
			return proc, nil
		})
	}
	p := opts.Prober
	if p == nil {
		p = health.New(health.Options{
			Path:           cfg.HealthPaths.Readiness,
			Interval:       cfg.ReadyPollInterval.D(),
			RequestTimeout: cfg.CheckTimeout.D(),
			Logger:         o.log.With().Str("component", "health").Logger(),
		})
	}

	o.mgr = manager.NewWithConfig(manager.ManagerConfig{
		Ports:                  ports,
		Launcher:               l,
		Prober:                 p,
		StartupTimeout:         cfg.StartupTimeout.D(),
		CheckInterval:          cfg.CheckInterval.D(),
		CheckTimeout:           cfg.CheckTimeout.D(),
		GracePeriod:            cfg.GracePeriod.D(),
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		UnhealthyEvictAfter:    cfg.UnhealthyEvictAfter,
		SkipReadyProbes:        !*cfg.ProbeReadySlots,
		Publisher:              opts.Publisher,
		Logger:                 o.log.With().Str("component", "manager").Logger(),
	})
	o.rt = router.New(o.mgr, router.Options{
		CompletionsPath: cfg.HealthPaths.Completions,
		ModelsPath:      cfg.HealthPaths.Models,
		CancelPath:      cfg.HealthPaths.Cancel,
		ForwardTimeout:  cfg.ForwardTimeout.D(),
		ModelsTimeout:   cfg.ModelsTimeout.D(),
		CancelTimeout:   cfg.CancelTimeout.D(),
		Logger:          o.log.With().Str("component", "router").Logger(),
	})
	return o, nil
}

// Start seeds the pool, starts the monitor and then binds the public
// listener. On error every launched worker has been terminated.
func (o *Orchestrator) Start(ctx context.Context) error {
	httpapi.SetBaseContext(o.baseCtx)
	httpapi.SetMaxBodyBytes(o.cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(o.cfg.CORS.Enabled, o.cfg.CORS.AllowedOrigins, o.cfg.CORS.AllowedMethods, o.cfg.CORS.AllowedHeaders)
	httpapi.SetLogger(o.log.With().Str("component", "http").Logger())

	if err := o.mgr.Seed(ctx, o.profiles); err != nil {
		o.abort()
		return fmt.Errorf("seed pool: %w", err)
	}
	o.mgr.StartMonitor(o.baseCtx)

	ln, err := net.Listen("tcp", o.cfg.Addr)
	if err != nil {
		o.abort()
		return fmt.Errorf("listen %s: %w", o.cfg.Addr, err)
	}
	o.ln = ln
	o.srv = &http.Server{
		Handler:           httpapi.NewMux(o),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		defer close(o.serveDone)
		if err := o.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Error().Err(err).Msg("http server stopped")
			o.serveErr = err
		}
	}()
	o.log.Info().Str("addr", ln.Addr().String()).Int("slots", o.mgr.PoolSize()).Int("ready", o.mgr.ReadyCount()).Msg("coordinator listening")
	return nil
}

func (o *Orchestrator) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.GracePeriod.D()+5*time.Second)
	defer cancel()
	_ = o.Shutdown(ctx, o.cfg.GracePeriod.D())
}

// Shutdown drains the HTTP layer, stops the listener and terminates every
// worker. Calls after the first return the first result.
func (o *Orchestrator) Shutdown(ctx context.Context, grace time.Duration) error {
	o.shutdownOnce.Do(func() {
		o.draining.Store(true)
		o.log.Info().Dur("grace", grace).Msg("coordinator shutting down")
		// Cancel first: in-flight completions observe the base context and
		// answer 503 instead of holding the HTTP drain open.
		o.baseCancel()
		var errs []error
		if o.srv != nil {
			if err := o.srv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
				_ = o.srv.Close()
			}
		}
		if err := o.mgr.Shutdown(ctx, grace); err != nil {
			errs = append(errs, fmt.Errorf("manager shutdown: %w", err))
		}
		if o.procs != nil {
			if err := o.procs.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close worker logs: %w", err))
			}
		}
		o.shutdownErr = errors.Join(errs...)
	})
	return o.shutdownErr
}

// Addr is the bound listener address, empty before Start.
func (o *Orchestrator) Addr() string {
	if o.ln == nil {
		return ""
	}
	return o.ln.Addr().String()
}

// Done is closed when the HTTP server stops serving.
func (o *Orchestrator) Done() <-chan struct{} { return o.serveDone }

// Err returns the serve error, if any, once Done is closed.
func (o *Orchestrator) Err() error {
	select {
	case <-o.serveDone:
		return o.serveErr
	default:
		return nil
	}
}

func (o *Orchestrator) Manager() *manager.Manager { return o.mgr }

// The methods below implement httpapi.Service.

func (o *Orchestrator) Completion(ctx context.Context, body []byte, header http.Header) (*router.Response, error) {
	return o.rt.Completion(ctx, body, header)
}

func (o *Orchestrator) Models(ctx context.Context) (*router.Response, error) {
	return o.rt.Models(ctx)
}

func (o *Orchestrator) Cancel(ctx context.Context, id string) types.CancelResponse {
	return o.rt.Cancel(ctx, id)
}

func (o *Orchestrator) Readiness() types.ReadyResponse { return o.mgr.Readiness() }

func (o *Orchestrator) Status() types.StatusResponse {
	st := o.mgr.Status()
	st.ShuttingDown = st.ShuttingDown || o.draining.Load()
	return st
}

func (o *Orchestrator) Draining() bool { return o.draining.Load() }
