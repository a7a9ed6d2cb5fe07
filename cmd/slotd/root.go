package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"slotd/docs"
	"slotd/internal/config"
	"slotd/internal/orchestrator"
	"slotd/internal/profiles"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// flagValues holds CLI values. Defaults come from the environment; fromEnv
// records which flags were seeded that way so they override the config file
// just like explicitly passed flags.
type flagValues struct {
	configPath string

	addr           string
	poolSize       int
	baseAPIPort    int
	baseStreamPort int
	baseDebugPort  int
	workerCommand  string
	workerArgs     string
	headless       bool
	logDir         string
	logLevel       string
	maxBodyBytes   int64
	corsOrigins    string

	profilesBackend string
	profilesDir     string
	cacheDir        string
	s3Bucket        string
	s3Prefix        string
	s3Region        string

	fromEnv map[string]bool
}

func (f *flagValues) envString(flag, key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		f.fromEnv[flag] = true
		return v
	}
	return def
}

func (f *flagValues) envInt(flag, key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.fromEnv[flag] = true
			return n
		}
	}
	return def
}

func (f *flagValues) envBool(flag, key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.fromEnv[flag] = true
			return b
		}
	}
	return def
}

func newRootCmd() *cobra.Command {
	fv := &flagValues{fromEnv: map[string]bool{}}
	root := &cobra.Command{
		Use:           "slotd",
		Short:         "Keep a fixed pool of authenticated workers and route completions across them",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, fv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := root.PersistentFlags()
	fs.StringVarP(&fv.configPath, "config", "c", fv.envString("config", "SLOTD_CONFIG", ""), "Config file (.yaml, .yml, .json, .toml); env SLOTD_CONFIG")
	fs.StringVar(&fv.addr, "addr", fv.envString("addr", "SLOTD_ADDR", config.DefaultAddr), "HTTP listen address; env SLOTD_ADDR")
	fs.IntVar(&fv.poolSize, "pool-size", fv.envInt("pool-size", "SLOTD_POOL_SIZE", 0), "Number of worker slots (0 = one per profile); env SLOTD_POOL_SIZE")
	fs.IntVar(&fv.baseAPIPort, "base-api-port", fv.envInt("base-api-port", "SLOTD_BASE_API_PORT", config.DefaultBaseAPIPort), "First worker API port; env SLOTD_BASE_API_PORT")
	fs.IntVar(&fv.baseStreamPort, "base-stream-port", fv.envInt("base-stream-port", "SLOTD_BASE_STREAM_PORT", config.DefaultBaseStreamPort), "First worker stream port; env SLOTD_BASE_STREAM_PORT")
	fs.IntVar(&fv.baseDebugPort, "base-debug-port", fv.envInt("base-debug-port", "SLOTD_BASE_DEBUG_PORT", config.DefaultBaseDebugPort), "First worker debug port; env SLOTD_BASE_DEBUG_PORT")
	fs.StringVar(&fv.workerCommand, "worker-command", fv.envString("worker-command", "SLOTD_WORKER_COMMAND", ""), "Worker executable; env SLOTD_WORKER_COMMAND")
	fs.StringVar(&fv.workerArgs, "worker-args", fv.envString("worker-args", "SLOTD_WORKER_ARGS", ""), "Comma-separated extra worker arguments; env SLOTD_WORKER_ARGS")
	fs.BoolVar(&fv.headless, "headless", fv.envBool("headless", "SLOTD_HEADLESS", true), "Pass --headless to workers; env SLOTD_HEADLESS")
	fs.StringVar(&fv.logDir, "log-dir", fv.envString("log-dir", "SLOTD_LOG_DIR", config.DefaultLogDir), "Directory for per-profile worker logs; env SLOTD_LOG_DIR")
	fs.StringVar(&fv.logLevel, "log-level", fv.envString("log-level", "SLOTD_LOG_LEVEL", config.DefaultLogLevel), "Log level: debug|info|warn|error; env SLOTD_LOG_LEVEL")
	fs.Int64Var(&fv.maxBodyBytes, "max-body-bytes", int64(fv.envInt("max-body-bytes", "SLOTD_MAX_BODY_BYTES", int(config.DefaultMaxBodyBytes))), "Completion request body cap; env SLOTD_MAX_BODY_BYTES")
	fs.StringVar(&fv.corsOrigins, "cors-origins", fv.envString("cors-origins", "SLOTD_CORS_ORIGINS", ""), "Comma-separated CORS origins; enables CORS when set; env SLOTD_CORS_ORIGINS")

	fs.StringVar(&fv.profilesBackend, "profiles-backend", fv.envString("profiles-backend", "PROFILE_BACKEND", config.DefaultProfilesBackend), "Profile backend: local|s3; env PROFILE_BACKEND")
	fs.StringVar(&fv.profilesDir, "profiles-dir", fv.envString("profiles-dir", "SLOTD_PROFILES_DIR", config.DefaultProfilesDir), "Directory of *.json auth profiles (local backend); env SLOTD_PROFILES_DIR")
	fs.StringVar(&fv.cacheDir, "cache-dir", fv.envString("cache-dir", "AUTH_PROFILE_CACHE_DIR", config.DefaultS3CacheDir), "Local cache for S3 profiles; env AUTH_PROFILE_CACHE_DIR")
	fs.StringVar(&fv.s3Bucket, "s3-bucket", fv.envString("s3-bucket", "AUTH_PROFILE_S3_BUCKET", ""), "S3 bucket holding profiles; env AUTH_PROFILE_S3_BUCKET")
	fs.StringVar(&fv.s3Prefix, "s3-prefix", fv.envString("s3-prefix", "AUTH_PROFILE_S3_PREFIX", ""), "S3 key prefix; env AUTH_PROFILE_S3_PREFIX")
	fs.StringVar(&fv.s3Region, "s3-region", fv.envString("s3-region", "AUTH_PROFILE_S3_REGION", ""), "S3 region; env AUTH_PROFILE_S3_REGION")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, fv)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	return root
}

// resolveConfig loads the config file (if any), applies flags that were set
// explicitly or seeded from the environment, fills defaults and validates.
func resolveConfig(cmd *cobra.Command, fv *flagValues) (config.Config, error) {
	var cfg config.Config
	if fv.configPath != "" {
		c, err := config.Load(fv.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	set := func(name string) bool {
		return cmd.Flags().Changed(name) || fv.fromEnv[name]
	}
	// With no config file every flag value applies, defaults included.
	noFile := fv.configPath == ""
	apply := func(name string) bool { return noFile || set(name) }

	if apply("addr") {
		cfg.Addr = fv.addr
	}
	if apply("pool-size") {
		cfg.PoolSize = fv.poolSize
	}
	if apply("base-api-port") {
		cfg.BaseAPIPort = fv.baseAPIPort
	}
	if apply("base-stream-port") {
		cfg.BaseStreamPort = fv.baseStreamPort
	}
	if apply("base-debug-port") {
		cfg.BaseDebugPort = fv.baseDebugPort
	}
	if apply("worker-command") && fv.workerCommand != "" {
		cfg.WorkerCommand = fv.workerCommand
	}
	if set("worker-args") {
		cfg.WorkerArgs = splitCSV(fv.workerArgs)
	}
	if apply("headless") {
		h := fv.headless
		cfg.Headless = &h
	}
	if apply("log-dir") {
		cfg.LogDir = fv.logDir
	}
	if apply("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if apply("max-body-bytes") {
		cfg.MaxBodyBytes = fv.maxBodyBytes
	}
	if set("cors-origins") {
		if origins := splitCSV(fv.corsOrigins); len(origins) > 0 {
			cfg.CORS.Enabled = true
			cfg.CORS.AllowedOrigins = origins
		}
	}
	if apply("profiles-backend") {
		cfg.Profiles.Backend = strings.ToLower(fv.profilesBackend)
	}
	if apply("profiles-dir") {
		cfg.Profiles.Dir = fv.profilesDir
	}
	if apply("cache-dir") {
		cfg.Profiles.CacheDir = fv.cacheDir
	}
	if set("s3-bucket") {
		cfg.Profiles.S3Bucket = fv.s3Bucket
	}
	if set("s3-prefix") {
		cfg.Profiles.S3Prefix = fv.s3Prefix
	}
	if set("s3-region") {
		cfg.Profiles.S3Region = fv.s3Region
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the root logger: console output on a terminal, JSON otherwise.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "slotd").Logger()
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(cfg.LogLevel)
	docs.SwaggerInfo.Version = version

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ps, hydrated, err := profiles.Load(ctx, cfg.Profiles, log.With().Str("component", "profiles").Logger())
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	if len(ps) == 0 {
		return fmt.Errorf("no auth profiles found in %s", hydrated.ProfilesDir)
	}
	if hydrated.KeyFile != "" {
		if cfg.WorkerEnv == nil {
			cfg.WorkerEnv = map[string]string{}
		}
		if _, ok := cfg.WorkerEnv["AUTH_KEY_FILE_PATH"]; !ok {
			cfg.WorkerEnv["AUTH_KEY_FILE_PATH"] = hydrated.KeyFile
		}
	}

	o, err := orchestrator.New(orchestrator.Options{
		Config:   cfg,
		Profiles: ps,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	log.Info().Str("version", version).Int("profiles", len(ps)).Str("worker", cfg.WorkerCommand).Msg("starting coordinator")
	if err := o.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("signal received")
	case <-o.Done():
		log.Warn().Msg("http server exited")
	}

	grace := cfg.GracePeriod.D()
	sctx, cancel := context.WithTimeout(context.Background(), grace+5*time.Second)
	defer cancel()
	if err := o.Shutdown(sctx, grace); err != nil {
		log.Error().Err(err).Msg("shutdown")
		return err
	}
	if err := o.Err(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info().Msg("coordinator stopped")
	return nil
}

// splitCSV splits a comma-separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
