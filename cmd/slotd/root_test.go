package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"slotd/internal/config"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

// effectiveConfig runs `slotd config` with args and decodes its output.
func effectiveConfig(t *testing.T, args ...string) config.Config {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"config"}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal(out.Bytes(), &cfg); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	return cfg
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "slotd.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestConfig_FileValuesKeptWithoutFlags(t *testing.T) {
	p := writeConfig(t, "addr: 127.0.0.1:9000\nworker_command: /bin/worker\npool_size: 4\nlog_level: debug\n")
	cfg := effectiveConfig(t, "--config", p)
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.PoolSize != 4 || cfg.LogLevel != "debug" {
		t.Fatalf("pool_size=%d log_level=%q", cfg.PoolSize, cfg.LogLevel)
	}
	if cfg.BaseAPIPort != config.DefaultBaseAPIPort {
		t.Fatalf("base_api_port = %d, want default", cfg.BaseAPIPort)
	}
}

func TestConfig_ExplicitFlagOverridesFile(t *testing.T) {
	p := writeConfig(t, "addr: 127.0.0.1:9000\nworker_command: /bin/worker\npool_size: 4\n")
	cfg := effectiveConfig(t, "--config", p, "--pool-size", "2", "--worker-args", "--foo, --bar", "--cors-origins", "http://a")
	if cfg.PoolSize != 2 {
		t.Fatalf("pool_size = %d, want 2", cfg.PoolSize)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("addr = %q, file value should survive", cfg.Addr)
	}
	if len(cfg.WorkerArgs) != 2 || cfg.WorkerArgs[1] != "--bar" {
		t.Fatalf("worker_args = %v", cfg.WorkerArgs)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.AllowedOrigins) != 1 {
		t.Fatalf("cors = %+v", cfg.CORS)
	}
}

func TestConfig_EnvSeedsFlags(t *testing.T) {
	t.Setenv("SLOTD_WORKER_COMMAND", "/opt/worker")
	t.Setenv("PROFILE_BACKEND", "S3")
	t.Setenv("AUTH_PROFILE_S3_BUCKET", "auth-bucket")
	t.Setenv("AUTH_PROFILE_S3_PREFIX", "team")
	cfg := effectiveConfig(t)
	if cfg.WorkerCommand != "/opt/worker" {
		t.Fatalf("worker_command = %q", cfg.WorkerCommand)
	}
	if cfg.Profiles.Backend != "s3" || cfg.Profiles.S3Bucket != "auth-bucket" || cfg.Profiles.S3Prefix != "team" {
		t.Fatalf("profiles = %+v", cfg.Profiles)
	}
	if cfg.Profiles.CacheDir != config.DefaultS3CacheDir {
		t.Fatalf("cache_dir = %q", cfg.Profiles.CacheDir)
	}
}

func TestConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("SLOTD_ADDR", "127.0.0.1:7000")
	p := writeConfig(t, "addr: 127.0.0.1:9000\nworker_command: /bin/worker\n")
	cfg := effectiveConfig(t, "--config", p)
	if cfg.Addr != "127.0.0.1:7000" {
		t.Fatalf("addr = %q, want env value", cfg.Addr)
	}
}

func TestConfig_Invalid(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "--profiles-backend", "ftp", "--worker-command", "w"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected validation error")
	}
}
