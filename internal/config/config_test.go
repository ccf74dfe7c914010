package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "CONFIG_FILE", "LLM_PROVIDER", "LLM_TIMEOUT_SECONDS", "LLM_RETRY_MAX_ATTEMPTS", "PROMPT_VERSION", "STORAGE_BACKEND", "RATE_LIMIT_PER_MINUTE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected default provider openai, got %q", cfg.LLMProvider)
	}
	if cfg.LLMTimeoutSeconds != 60 {
		t.Fatalf("expected default timeout 60, got %d", cfg.LLMTimeoutSeconds)
	}
	if cfg.LLMRetryMaxAttempts != 1 {
		t.Fatalf("expected retries disabled by default, got %d", cfg.LLMRetryMaxAttempts)
	}
	if cfg.PromptVersion != "v1" {
		t.Fatalf("expected prompt version v1, got %q", cfg.PromptVersion)
	}
	if cfg.StorageBackend != "localfs" {
		t.Fatalf("expected localfs storage, got %q", cfg.StorageBackend)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Fatalf("expected 30 requests per minute, got %d", cfg.RateLimitPerMinute)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	clearEnv(t, "CONFIG_FILE")
	t.Setenv("LLM_PROVIDER", "MOCK")
	t.Setenv("LLM_FORCE_ERROR", "true")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMProvider != "mock" || !cfg.LLMForceError {
		t.Fatalf("unexpected provider settings %q/%v", cfg.LLMProvider, cfg.LLMForceError)
	}
	if cfg.LLMTemperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", cfg.LLMTemperature)
	}
	if cfg.DBMaxConns != 25 {
		t.Fatalf("expected 25 max conns, got %d", cfg.DBMaxConns)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Fatalf("invalid numbers must fall back to the default, got %d", cfg.RateLimitPerMinute)
	}
}

func TestLoadReadsYAMLFileWithEnvPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "API_PORT: 9000\nLLM_PROVIDER: mock\nLLM_TIMEOUT_SECONDS: 15\nMINIO_USE_SSL: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	clearEnv(t, "API_PORT", "LLM_TIMEOUT_SECONDS", "MINIO_USE_SSL")
	t.Setenv("LLM_PROVIDER", "openai")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9000" {
		t.Fatalf("expected port from file, got %q", cfg.APIPort)
	}
	if cfg.LLMTimeoutSeconds != 15 {
		t.Fatalf("expected timeout from file, got %d", cfg.LLMTimeoutSeconds)
	}
	if !cfg.MinIOUseSSL {
		t.Fatalf("expected MINIO_USE_SSL from file")
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("environment must win over file, got %q", cfg.LLMProvider)
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestWorkerValidationSkipsJWTSecret(t *testing.T) {
	cfg := Config{
		PostgresDSN:         "postgres://localhost/db",
		StorageBackend:      "localfs",
		StoragePath:         "/tmp/data",
		LLMProvider:         "mock",
		LLMTimeoutSeconds:   60,
		LLMRetryMaxAttempts: 1,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := cfg.ValidateAPI(); err == nil {
		t.Fatalf("expected ValidateAPI to require JWT_SECRET")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		PostgresDSN:         "postgres://localhost/db",
		JWTSecret:           "secret",
		StorageBackend:      "localfs",
		StoragePath:         "/tmp/data",
		LLMProvider:         "mock",
		LLMTimeoutSeconds:   60,
		LLMRetryMaxAttempts: 1,
	}
	if err := valid.ValidateAPI(); err != nil {
		t.Fatalf("ValidateAPI() error = %v", err)
	}

	invalid := valid
	invalid.JWTSecret = ""
	invalid.StorageBackend = "s3"
	invalid.LLMProvider = "openai"
	err := invalid.ValidateAPI()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"JWT_SECRET", "STORAGE_BACKEND", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}

	forced := valid
	forced.LLMProvider = "openai"
	forced.LLMForceError = true
	if err := forced.ValidateAPI(); err != nil {
		t.Fatalf("forced failure mode does not need an api key, got %v", err)
	}
}

func TestValidateRejectsUnsupportedPromptVersion(t *testing.T) {
	clearEnv(t, "CONFIG_FILE", "POSTGRES_DSN", "STORAGE_PATH", "LLM_TIMEOUT_SECONDS", "LLM_RETRY_MAX_ATTEMPTS", "RATE_LIMIT_PER_MINUTE")
	t.Setenv("STORAGE_BACKEND", "localfs")
	t.Setenv("PROMPT_VERSION", "v2")
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	err = cfg.ValidateAPI()
	if err == nil || !strings.Contains(err.Error(), "PROMPT_VERSION") {
		t.Fatalf("expected PROMPT_VERSION to be rejected at startup, got %v", err)
	}

	cfg.PromptVersion = "v1"
	if err := cfg.ValidateAPI(); err != nil {
		t.Fatalf("v1 must be accepted, got %v", err)
	}
}
