package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAddr                   = "0.0.0.0:2048"
	DefaultBaseAPIPort            = 3100
	DefaultBaseStreamPort         = 3200
	DefaultBaseDebugPort          = 9222
	DefaultPortStep               = 1
	DefaultStartupTimeout         = 60 * time.Second
	DefaultReadyPollInterval      = time.Second
	DefaultCheckInterval          = 5 * time.Second
	DefaultCheckTimeout           = 10 * time.Second
	DefaultForwardTimeout         = 60 * time.Second
	DefaultModelsTimeout          = 15 * time.Second
	DefaultCancelTimeout          = 10 * time.Second
	DefaultGracePeriod            = 15 * time.Second
	DefaultMaxConsecutiveFailures = 3
	DefaultUnhealthyEvictAfter    = 3
	DefaultLogDir                 = "logs/coordinator"
	DefaultLogMaxSizeMB           = 5
	DefaultLogMaxBackups          = 5
	DefaultLogLevel               = "info"
	DefaultSpawnRate              = 2.0
	DefaultMaxBodyBytes           = int64(1 << 20)
	DefaultProfilesBackend        = "local"
	DefaultProfilesDir            = "auth_profiles/active"
	DefaultS3CacheDir             = "/tmp/auth_profiles"
	DefaultReadinessPath          = "/health"
	DefaultCompletionsPath        = "/v1/chat/completions"
	DefaultModelsPath             = "/v1/models"
	DefaultCancelPath             = "/v1/cancel"
)

// Defaults returns a Config with every field at its default value.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued fields in place.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.BaseAPIPort == 0 {
		c.BaseAPIPort = DefaultBaseAPIPort
	}
	if c.BaseStreamPort == 0 {
		c.BaseStreamPort = DefaultBaseStreamPort
	}
	if c.BaseDebugPort == 0 {
		c.BaseDebugPort = DefaultBaseDebugPort
	}
	if c.PortStep == 0 {
		c.PortStep = DefaultPortStep
	}
	setDur(&c.StartupTimeout, DefaultStartupTimeout)
	setDur(&c.ReadyPollInterval, DefaultReadyPollInterval)
	setDur(&c.CheckInterval, DefaultCheckInterval)
	setDur(&c.CheckTimeout, DefaultCheckTimeout)
	setDur(&c.ForwardTimeout, DefaultForwardTimeout)
	setDur(&c.ModelsTimeout, DefaultModelsTimeout)
	setDur(&c.CancelTimeout, DefaultCancelTimeout)
	setDur(&c.GracePeriod, DefaultGracePeriod)
	if c.MaxConsecutiveFailures == 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.UnhealthyEvictAfter == 0 {
		c.UnhealthyEvictAfter = DefaultUnhealthyEvictAfter
	}
	if c.ProbeReadySlots == nil {
		c.ProbeReadySlots = boolPtr(true)
	}
	if c.Headless == nil {
		c.Headless = boolPtr(true)
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = DefaultLogMaxBackups
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.SpawnRate == 0 {
		c.SpawnRate = DefaultSpawnRate
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Profiles.Backend == "" {
		c.Profiles.Backend = DefaultProfilesBackend
	}
	if c.Profiles.Dir == "" && c.Profiles.Backend == "local" {
		c.Profiles.Dir = DefaultProfilesDir
	}
	if c.Profiles.CacheDir == "" {
		c.Profiles.CacheDir = DefaultS3CacheDir
	}
	p := &c.HealthPaths
	if p.Readiness == "" {
		p.Readiness = DefaultReadinessPath
	}
	if p.Completions == "" {
		p.Completions = DefaultCompletionsPath
	}
	if p.Models == "" {
		p.Models = DefaultModelsPath
	}
	if p.Cancel == "" {
		p.Cancel = DefaultCancelPath
	}
}

// Validate reports every out-of-range value. Call after ApplyDefaults.
func (c Config) Validate() error {
	var errs []error
	if c.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("pool_size must be >= 0, got %d", c.PoolSize))
	}
	if c.PortStep <= 0 {
		errs = append(errs, fmt.Errorf("port_step must be > 0, got %d", c.PortStep))
	}
	for name, p := range map[string]int{"base_api_port": c.BaseAPIPort, "base_stream_port": c.BaseStreamPort, "base_debug_port": c.BaseDebugPort} {
		if p <= 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("%s out of range: %d", name, p))
		}
	}
	for name, d := range map[string]Duration{
		"startup_timeout":     c.StartupTimeout,
		"ready_poll_interval": c.ReadyPollInterval,
		"check_interval":      c.CheckInterval,
		"check_timeout":       c.CheckTimeout,
		"forward_timeout":     c.ForwardTimeout,
		"models_timeout":      c.ModelsTimeout,
		"cancel_timeout":      c.CancelTimeout,
		"grace_period":        c.GracePeriod,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.MaxConsecutiveFailures < 1 {
		errs = append(errs, fmt.Errorf("max_consecutive_failures must be >= 1"))
	}
	if c.UnhealthyEvictAfter < 1 {
		errs = append(errs, fmt.Errorf("unhealthy_evict_after must be >= 1"))
	}
	if c.SpawnRate < 0 || c.SpawnBurst < 0 {
		errs = append(errs, fmt.Errorf("spawn_rate and spawn_burst must not be negative"))
	}
	if strings.TrimSpace(c.WorkerCommand) == "" {
		errs = append(errs, fmt.Errorf("worker_command is required"))
	}
	switch c.Profiles.Backend {
	case "local":
		if c.Profiles.Dir == "" {
			errs = append(errs, fmt.Errorf("profiles.dir is required for the local backend"))
		}
	case "s3":
		if c.Profiles.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("profiles.s3_bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown profiles backend %q", c.Profiles.Backend))
	}
	return errors.Join(errs...)
}

func setDur(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

func boolPtr(b bool) *bool { return &b }
