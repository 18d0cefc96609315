package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TB_PORT", "TB_GRPC_PORT", "TB_ENV", "TB_DATABASE_DSN",
		"TB_WORKER_TOKEN_SECRET", "TB_WORKER_TOKEN_TTL",
		"TB_ADMIN_TOKEN_SECRET", "TB_ADMIN_ISSUER",
		"TB_LOGIN_RATE_PER_MINUTE", "TB_LOGIN_BURST",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsAndValidation(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	if cfg == nil {
		t.Fatal("expected config even with validation errors")
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
	if cfg.WorkerTokenTTL != DefaultWorkerTokenTTL {
		t.Fatalf("expected default TTL, got %v", cfg.WorkerTokenTTL)
	}

	var sawWorker, sawAdmin bool
	for _, err := range errs {
		switch err {
		case ErrMissingWorkerSecret:
			sawWorker = true
		case ErrMissingAdminSecret:
			sawAdmin = true
		}
	}
	if !sawWorker || !sawAdmin {
		t.Fatalf("expected missing-secret errors, got %v", errs)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: 9000\nenv: staging\nworker_token_secret: file-secret\nadmin_token_secret: file-admin\nworker_token_ttl: 30m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TB_PORT", "9100")
	t.Setenv("TB_WORKER_TOKEN_SECRET", "env-secret")

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Port != 9100 {
		t.Fatalf("env should override file port, got %d", cfg.Port)
	}
	if cfg.WorkerTokenSecret != "env-secret" {
		t.Fatalf("env should override file secret, got %q", cfg.WorkerTokenSecret)
	}
	if cfg.Env != "staging" {
		t.Fatalf("file env should apply, got %q", cfg.Env)
	}
	if cfg.WorkerTokenTTL != 30*time.Minute {
		t.Fatalf("file TTL should apply, got %v", cfg.WorkerTokenTTL)
	}
	if cfg.AdminTokenSecret != "file-admin" {
		t.Fatalf("file admin secret should apply, got %q", cfg.AdminTokenSecret)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("TB_PORT", "not-a-number")
	t.Setenv("TB_WORKER_TOKEN_SECRET", "s")
	t.Setenv("TB_ADMIN_TOKEN_SECRET", "s")

	_, errs := Load("")
	found := false
	for _, err := range errs {
		if err == ErrInvalidPort {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrInvalidPort, got %v", errs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if len(errs) != 1 {
		t.Fatalf("expected single load error, got %v", errs)
	}
}

func TestIsProduction(t *testing.T) {
	cases := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"staging", false},
		{"development", false},
		{"", false},
	}
	for _, tc := range cases {
		cfg := &Config{Env: tc.env}
		if got := cfg.IsProduction(); got != tc.want {
			t.Errorf("IsProduction with env %q = %v, want %v", tc.env, got, tc.want)
		}
	}
}
