// Package config loads service configuration by merging an optional YAML
// file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds every tunable the API server needs.
type Config struct {
	Port     int    `koanf:"port"`
	GRPCPort int    `koanf:"grpc_port"`
	Env      string `koanf:"env"`

	// Database
	DatabaseDSN string `koanf:"database_dsn"`

	// Worker session tokens (self-hosted HS256)
	WorkerTokenSecret string        `koanf:"worker_token_secret"`
	WorkerTokenTTL    time.Duration `koanf:"worker_token_ttl"`

	// External identity provider (admin bearer tokens)
	AdminTokenSecret string `koanf:"admin_token_secret"`
	AdminIssuer      string `koanf:"admin_issuer"`

	// Login throttling
	LoginRatePerMinute int `koanf:"login_rate_per_minute"`
	LoginBurst         int `koanf:"login_burst"`
}

// Validation errors.
var (
	ErrMissingWorkerSecret = errors.New("TB_WORKER_TOKEN_SECRET is required")
	ErrMissingAdminSecret  = errors.New("TB_ADMIN_TOKEN_SECRET is required")
	ErrInvalidPort         = errors.New("TB_PORT must be a valid integer")
)

// Defaults for non-secret settings.
const (
	DefaultPort               = 8080
	DefaultGRPCPort           = 9090
	DefaultEnv                = "development"
	DefaultWorkerTokenTTL     = time.Hour
	DefaultAdminIssuer        = "https://id.tacklebase.app"
	DefaultLoginRatePerMinute = 10
	DefaultLoginBurst         = 5
)

// Load reads configuration from an optional YAML file and the environment.
// Environment variables take precedence over file values. It returns the
// config plus any validation errors (empty slice when valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var errs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := envInt("TB_PORT", k.Int("port"), DefaultPort)
	if err != nil {
		errs = append(errs, ErrInvalidPort)
	}
	grpcPort, err := envInt("TB_GRPC_PORT", k.Int("grpc_port"), DefaultGRPCPort)
	if err != nil {
		errs = append(errs, fmt.Errorf("TB_GRPC_PORT must be a valid integer"))
	}
	ratePerMin, err := envInt("TB_LOGIN_RATE_PER_MINUTE", k.Int("login_rate_per_minute"), DefaultLoginRatePerMinute)
	if err != nil {
		errs = append(errs, fmt.Errorf("TB_LOGIN_RATE_PER_MINUTE must be a valid integer"))
	}
	burst, err := envInt("TB_LOGIN_BURST", k.Int("login_burst"), DefaultLoginBurst)
	if err != nil {
		errs = append(errs, fmt.Errorf("TB_LOGIN_BURST must be a valid integer"))
	}

	ttl := DefaultWorkerTokenTTL
	if v := k.Duration("worker_token_ttl"); v > 0 {
		ttl = v
	}
	if raw := os.Getenv("TB_WORKER_TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("TB_WORKER_TOKEN_TTL: %w", err))
		} else {
			ttl = parsed
		}
	}

	cfg := &Config{
		Port:               port,
		GRPCPort:           grpcPort,
		Env:                envString("TB_ENV", k.String("env"), DefaultEnv),
		DatabaseDSN:        envString("TB_DATABASE_DSN", k.String("database_dsn"), ""),
		WorkerTokenSecret:  envString("TB_WORKER_TOKEN_SECRET", k.String("worker_token_secret"), ""),
		WorkerTokenTTL:     ttl,
		AdminTokenSecret:   envString("TB_ADMIN_TOKEN_SECRET", k.String("admin_token_secret"), ""),
		AdminIssuer:        envString("TB_ADMIN_ISSUER", k.String("admin_issuer"), DefaultAdminIssuer),
		LoginRatePerMinute: ratePerMin,
		LoginBurst:         burst,
	}

	if cfg.WorkerTokenSecret == "" {
		errs = append(errs, ErrMissingWorkerSecret)
	}
	if cfg.AdminTokenSecret == "" {
		errs = append(errs, ErrMissingAdminSecret)
	}

	return cfg, errs
}

// IsProduction reports whether the service runs in a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func envString(envKey, fileVal, def string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return def
}

func envInt(envKey string, fileVal, def int) (int, error) {
	if raw := os.Getenv(envKey); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return def, err
		}
		return v, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return def, nil
}
