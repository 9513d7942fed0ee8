package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9090
  read_timeout: 5s
log:
  level: debug
  format: console
model:
  type: random_forest
  path: models/forest.json
reference:
  source: sqlite
  path: data/reference.db
cache:
  size: 0
reload:
  enabled: true
  debounce: 2s
monitor:
  enabled: false
  heartbeat: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.HTTP.WriteTimeout != 15*time.Second {
		t.Fatalf("expected default write timeout, got %v", cfg.HTTP.WriteTimeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" || cfg.Log.MaxBackups != 3 {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Model.Type != "random_forest" || cfg.Reference.Source != "sqlite" {
		t.Fatalf("unexpected model/reference config: %+v %+v", cfg.Model, cfg.Reference)
	}
	if cfg.Cache.Size != 0 {
		t.Fatalf("expected cache disabled, got %d", cfg.Cache.Size)
	}
	if !cfg.Reload.Enabled || cfg.Reload.Debounce != 2*time.Second {
		t.Fatalf("unexpected reload config: %+v", cfg.Reload)
	}
	if cfg.Monitor.Enabled || cfg.Monitor.Heartbeat != 10*time.Second {
		t.Fatalf("unexpected monitor config: %+v", cfg.Monitor)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 9090\n")
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("MODEL_PATH", "/srv/model.json")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 7070 || cfg.Model.Path != "/srv/model.json" || cfg.Log.Level != "warn" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}

	t.Setenv("HTTP_PORT", "eighty")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-numeric HTTP_PORT")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "http: [\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = 0
	cfg.Model.Type = "svm"
	cfg.Reference.Source = "parquet"
	cfg.Cache.Size = -1
	cfg.Monitor.Heartbeat = -time.Second

	err := cfg.Validate()
	if n := len(multierr.Errors(err)); n != 5 {
		t.Fatalf("expected 5 problems, got %d: %v", n, err)
	}
	if !strings.Contains(err.Error(), "svm") {
		t.Fatalf("expected model type in error, got %v", err)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	if Path() != DefaultPath {
		t.Fatalf("expected %s, got %s", DefaultPath, Path())
	}
	t.Setenv("CONFIG_FILE", "/etc/diabetesrisk.yaml")
	if Path() != "/etc/diabetesrisk.yaml" {
		t.Fatalf("unexpected path %s", Path())
	}
}
