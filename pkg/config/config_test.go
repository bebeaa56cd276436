package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loom.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
debug: true
default_backend: main
backends:
  main:
    kind: anthropic
    api_key: sk-test
    model: claude-sonnet-4-20250514
  local:
    kind: openai
    base_url: http://localhost:8080/v1/chat/completions
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug not set")
	}
	if cfg.DefaultBackend != "main" {
		t.Errorf("default_backend = %q", cfg.DefaultBackend)
	}
	if got := cfg.Backends["main"].APIKey; got != "sk-test" {
		t.Errorf("api_key = %q", got)
	}
	if got := cfg.Backends["local"].Kind; got != "openai" {
		t.Errorf("kind = %q", got)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogFormat != "human" {
		t.Errorf("log_format = %q, want human", cfg.LogFormat)
	}
	if cfg.Debug {
		t.Error("debug should default to false")
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	path := writeConfig(t, `
backends:
  odd:
    kind: carrier-pigeon
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend kind")
	}
}

func TestLoadRejectsDanglingDefault(t *testing.T) {
	path := writeConfig(t, `
default_backend: ghost
backends:
  main:
    kind: openai
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for default pointing at missing backend")
	}
}

func TestRegistryBuildsConfiguredBackends(t *testing.T) {
	path := writeConfig(t, `
default_backend: main
backends:
  main:
    kind: anthropic
    api_key: k
  alt:
    kind: openai
    api_key: k2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Registry(); err != nil {
		t.Fatal(err)
	}
}
