package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/Sentinel/internal/domain/confidence"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "sentinel.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SENTINEL_PORT")
	setString(&cfg.Server.CORSOrigin, "SENTINEL_CORS_ORIGIN")
	setString(&cfg.Server.AdminToken, "SENTINEL_ADMIN_TOKEN")
	setString(&cfg.Store.Backend, "SENTINEL_STORE_BACKEND")
	setString(&cfg.Store.FileDir, "SENTINEL_STORE_DIR")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SENTINEL_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SENTINEL_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SENTINEL_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SENTINEL_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SENTINEL_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.CacheBucket, "SENTINEL_NATS_CACHE_BUCKET")
	setDuration(&cfg.NATS.CacheTTL, "SENTINEL_NATS_CACHE_TTL")
	setString(&cfg.Logging.Level, "SENTINEL_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SENTINEL_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SENTINEL_LOG_ASYNC")
	setInt(&cfg.Logging.Buffer, "SENTINEL_LOG_BUFFER")
	setInt(&cfg.Breaker.MaxFailures, "SENTINEL_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SENTINEL_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "SENTINEL_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SENTINEL_RATE_BURST")
	setInt64(&cfg.Cache.L1MaxSizeMB, "SENTINEL_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "SENTINEL_CACHE_L1_TTL")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.MCP.Enabled, "SENTINEL_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "SENTINEL_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "SENTINEL_MCP_API_KEY")

	// Tuner
	setInt(&cfg.Tuner.MinTurnWindow, "SENTINEL_TUNER_MIN_TURN_WINDOW")
	setInt(&cfg.Tuner.MinDetections, "SENTINEL_TUNER_MIN_DETECTIONS")
	setFloat64(&cfg.Tuner.ROIMultiple, "SENTINEL_TUNER_ROI_MULTIPLE")
	setFloat64(&cfg.Tuner.FPCeiling, "SENTINEL_TUNER_FP_CEILING")
	setFloat64(&cfg.Tuner.FPFloor, "SENTINEL_TUNER_FP_FLOOR")
	setInt(&cfg.Tuner.RetuneInterval, "SENTINEL_TUNER_RETUNE_INTERVAL")
	setInt(&cfg.Tuner.MinSample, "SENTINEL_TUNER_MIN_SAMPLE")
}

// validate checks that required fields are set and that the confidence tier
// bands form a usable partition.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "file":
		if cfg.Store.FileDir == "" {
			return errors.New("store.file_dir is required for the file backend")
		}
	default:
		return fmt.Errorf("store.backend must be \"postgres\" or \"file\", got %q", cfg.Store.Backend)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if err := confidence.ValidateBands(cfg.Confidence.Tiers); err != nil {
		return fmt.Errorf("confidence.tiers: %w", err)
	}
	if cfg.Tuner.FPCeiling <= cfg.Tuner.FPFloor {
		return errors.New("tuner.fp_ceiling must exceed tuner.fp_floor")
	}
	if cfg.Tuner.RetuneInterval < 1 {
		return errors.New("tuner.retune_interval must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
