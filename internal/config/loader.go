package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the coordinator.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	PoolSize int    `json:"pool_size" yaml:"pool_size" toml:"pool_size"`

	BaseAPIPort    int `json:"base_api_port" yaml:"base_api_port" toml:"base_api_port"`
	BaseStreamPort int `json:"base_stream_port" yaml:"base_stream_port" toml:"base_stream_port"`
	BaseDebugPort  int `json:"base_debug_port" yaml:"base_debug_port" toml:"base_debug_port"`
	PortStep       int `json:"port_step" yaml:"port_step" toml:"port_step"`

	StartupTimeout    Duration `json:"startup_timeout" yaml:"startup_timeout" toml:"startup_timeout"`
	ReadyPollInterval Duration `json:"ready_poll_interval" yaml:"ready_poll_interval" toml:"ready_poll_interval"`
	CheckInterval     Duration `json:"check_interval" yaml:"check_interval" toml:"check_interval"`
	CheckTimeout      Duration `json:"check_timeout" yaml:"check_timeout" toml:"check_timeout"`
	ForwardTimeout    Duration `json:"forward_timeout" yaml:"forward_timeout" toml:"forward_timeout"`
	ModelsTimeout     Duration `json:"models_timeout" yaml:"models_timeout" toml:"models_timeout"`
	CancelTimeout     Duration `json:"cancel_timeout" yaml:"cancel_timeout" toml:"cancel_timeout"`
	GracePeriod       Duration `json:"grace_period" yaml:"grace_period" toml:"grace_period"`

	MaxConsecutiveFailures int   `json:"max_consecutive_failures" yaml:"max_consecutive_failures" toml:"max_consecutive_failures"`
	UnhealthyEvictAfter    int   `json:"unhealthy_evict_after" yaml:"unhealthy_evict_after" toml:"unhealthy_evict_after"`
	ProbeReadySlots        *bool `json:"probe_ready_slots" yaml:"probe_ready_slots" toml:"probe_ready_slots"`

	WorkerCommand string            `json:"worker_command" yaml:"worker_command" toml:"worker_command"`
	WorkerArgs    []string          `json:"worker_args" yaml:"worker_args" toml:"worker_args"`
	WorkerDir     string            `json:"worker_dir" yaml:"worker_dir" toml:"worker_dir"`
	WorkerEnv     map[string]string `json:"worker_env" yaml:"worker_env" toml:"worker_env"`
	Headless      *bool             `json:"headless" yaml:"headless" toml:"headless"`

	LogDir        string `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
	LogMaxSizeMB  int    `json:"log_max_size_mb" yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	LogMaxBackups int    `json:"log_max_backups" yaml:"log_max_backups" toml:"log_max_backups"`
	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`

	SpawnRate  float64 `json:"spawn_rate" yaml:"spawn_rate" toml:"spawn_rate"`
	SpawnBurst int     `json:"spawn_burst" yaml:"spawn_burst" toml:"spawn_burst"`

	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORS        CORSConfig     `json:"cors" yaml:"cors" toml:"cors"`
	Profiles    ProfilesConfig `json:"profiles" yaml:"profiles" toml:"profiles"`
	HealthPaths WorkerPaths    `json:"health_paths" yaml:"health_paths" toml:"health_paths"`
}

// CORSConfig mirrors go-chi/cors options. Disabled unless Enabled is set.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// ProfilesConfig selects where auth profiles come from.
type ProfilesConfig struct {
	// Backend is "local" or "s3".
	Backend  string `json:"backend" yaml:"backend" toml:"backend"`
	Dir      string `json:"dir" yaml:"dir" toml:"dir"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	S3Bucket string `json:"s3_bucket" yaml:"s3_bucket" toml:"s3_bucket"`
	S3Prefix string `json:"s3_prefix" yaml:"s3_prefix" toml:"s3_prefix"`
	S3Region string `json:"s3_region" yaml:"s3_region" toml:"s3_region"`
}

// WorkerPaths is the worker HTTP contract.
type WorkerPaths struct {
	Readiness   string `json:"readiness" yaml:"readiness" toml:"readiness"`
	Completions string `json:"completions" yaml:"completions" toml:"completions"`
	Models      string `json:"models" yaml:"models" toml:"models"`
	Cancel      string `json:"cancel" yaml:"cancel" toml:"cancel"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
