// Package launcher starts worker processes bound to a profile and a port triple,
// and routes their output into per-profile rotating log files.
package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slotd/pkg/types"
)

// Options configures a Launcher.
type Options struct {
	// Command is the worker executable.
	Command string
	// Args are appended after the generated port/profile flags.
	Args []string
	Dir  string
	// Env is added on top of the coordinator's environment.
	Env      map[string]string
	Headless bool

	// LogDir holds one rotating <profile>.log per profile. Empty discards worker output.
	LogDir        string
	LogMaxSizeMB  int
	LogMaxBackups int

	// SpawnRate limits launches per second; 0 disables throttling.
	SpawnRate  float64
	SpawnBurst int

	// WaitDelay bounds how long output copying may outlive the process.
	WaitDelay time.Duration

	Logger zerolog.Logger
}

// Launcher spawns worker processes. It is safe for concurrent use.
type Launcher struct {
	opts    Options
	limiter *rate.Limiter
	log     zerolog.Logger

	mu    sync.Mutex
	sinks map[string]*sink
}

// New constructs a Launcher.
func New(opts Options) *Launcher {
	l := &Launcher{opts: opts, log: opts.Logger, sinks: make(map[string]*sink)}
	if opts.SpawnRate > 0 {
		burst := opts.SpawnBurst
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(opts.SpawnRate), burst)
	}
	if l.opts.WaitDelay <= 0 {
		l.opts.WaitDelay = 2 * time.Second
	}
	return l
}

// Args returns the full argument list for a worker bound to profile and ports.
func (l *Launcher) Args(profile types.Profile, ports types.PortTriple) []string {
	args := []string{
		"--server-port", strconv.Itoa(ports.API),
		"--stream-port", strconv.Itoa(ports.Stream),
		"--debug-port", strconv.Itoa(ports.Debug),
		"--profile", profile.Path,
	}
	if l.opts.Headless {
		args = append(args, "--headless")
	}
	return append(args, l.opts.Args...)
}

// Env returns the environment for a worker bound to profile and ports.
func (l *Launcher) Env(profile types.Profile, ports types.PortTriple) []string {
	env := append([]string(nil), os.Environ()...)
	env = append(env,
		"SLOTD_PROFILE_NAME="+profile.Name,
		"SLOTD_PROFILE_PATH="+profile.Path,
		"SLOTD_API_PORT="+strconv.Itoa(ports.API),
		"SLOTD_STREAM_PORT="+strconv.Itoa(ports.Stream),
		"SLOTD_DEBUG_PORT="+strconv.Itoa(ports.Debug),
	)
	keys := make([]string, 0, len(l.opts.Env))
	for k := range l.opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+l.opts.Env[k])
	}
	return env
}

// Launch starts a worker. It does not wait for readiness.
func (l *Launcher) Launch(ctx context.Context, profile types.Profile, ports types.PortTriple) (*Process, error) {
	if strings.TrimSpace(l.opts.Command) == "" {
		return nil, launchFailure(profile.Name, fmt.Errorf("worker command is empty"))
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, launchFailure(profile.Name, fmt.Errorf("spawn throttle: %w", err))
		}
	}
	fi, err := os.Stat(profile.Path)
	if err != nil {
		return nil, launchFailure(profile.Name, fmt.Errorf("profile file: %w", err))
	}
	if fi.IsDir() {
		return nil, launchFailure(profile.Name, fmt.Errorf("profile path is a directory: %s", profile.Path))
	}

	out, err := l.sinkFor(profile.Name)
	if err != nil {
		return nil, launchFailure(profile.Name, err)
	}

	cmd := exec.Command(l.opts.Command, l.Args(profile, ports)...)
	cmd.Dir = l.opts.Dir
	cmd.Env = l.Env(profile, ports)
	cmd.WaitDelay = l.opts.WaitDelay
	stdout := &lineWriter{log: out.log, stream: "stdout"}
	stderr := &lineWriter{log: out.log, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, launchFailure(profile.Name, fmt.Errorf("start worker: %w", err))
	}
	pid := cmd.Process.Pid
	withPID := out.log.With().Int("pid", pid).Logger()
	stdout.setLogger(withPID)
	stderr.setLogger(withPID)

	p := &Process{cmd: cmd, pid: pid, profile: profile.Name, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		p.finish(err)
		if err != nil {
			l.log.Warn().Err(err).Str("profile", p.Profile()).Int("pid", p.PID()).Msg("worker exited")
			return
		}
		l.log.Info().Str("profile", p.Profile()).Int("pid", p.PID()).Msg("worker exited")
	}()

	l.log.Info().
		Str("profile", profile.Name).
		Int("pid", pid).
		Int("api_port", ports.API).
		Int("stream_port", ports.Stream).
		Int("debug_port", ports.Debug).
		Msg("worker started")
	return p, nil
}

// Close releases the per-profile log files.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for name, s := range l.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
		delete(l.sinks, name)
	}
	return first
}
