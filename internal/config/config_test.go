package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  max_upload_bytes: 2048
model:
  base_url: http://localhost:11434/v1
  model: llama3.2-vision
  timeout: 45s
  max_attempts: 5
interpreter:
  confidence_policy: reject
  disclaimer: false
minio:
  endpoint: localhost:9000
  bucketName: pets
cors:
  allowed_origins: ["https://pawspeak.app"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.MaxUploadBytes != 2048 {
		t.Errorf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Model.Model != "llama3.2-vision" || cfg.Model.Timeout != 45*time.Second || cfg.Model.MaxAttempts != 5 {
		t.Errorf("unexpected model section %+v", cfg.Model)
	}
	if cfg.Interpreter.ConfidencePolicy != "reject" {
		t.Errorf("expected reject policy, got %q", cfg.Interpreter.ConfidencePolicy)
	}
	if cfg.DisclaimerEnabled() {
		t.Error("expected disclaimer disabled")
	}
	if !cfg.MinioEnabled() {
		t.Error("expected minio enabled")
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://pawspeak.app" {
		t.Errorf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Model.MaxAttempts != 3 || cfg.Model.Timeout != 30*time.Second {
		t.Errorf("unexpected model defaults %+v", cfg.Model)
	}
	if cfg.Interpreter.ConfidencePolicy != "clamp" {
		t.Errorf("expected clamp default, got %q", cfg.Interpreter.ConfidencePolicy)
	}
	if cfg.Image.MaxPixels != 40_000_000 {
		t.Errorf("expected default pixel cap, got %d", cfg.Image.MaxPixels)
	}
	if !cfg.DisclaimerEnabled() {
		t.Error("expected disclaimer on by default")
	}
	if cfg.MinioEnabled() {
		t.Error("expected minio disabled by default")
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "model:\n  api_key: from-file\n  model: from-file\n")
	t.Setenv("MODEL_API_KEY", "sk-env")
	t.Setenv("MODEL_ID", "gpt-4o")
	t.Setenv("MODEL_BASE_URL", "https://example.test/v1")
	t.Setenv("PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model.APIKey != "sk-env" || cfg.Model.Model != "gpt-4o" || cfg.Model.BaseURL != "https://example.test/v1" {
		t.Errorf("env overrides not applied: %+v", cfg.Model)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("expected port 7000, got %d", cfg.Server.Port)
	}
}

func TestLoad_BadPortEnv(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [port")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	path := writeConfig(t, `
interpreter:
  confidence_policy: round
model:
  temperature: 3
minio:
  endpoint: localhost:9000
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"confidence_policy", "temperature", "bucketName"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}
