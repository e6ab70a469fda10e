package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "genflow.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("GENFLOW_API_KEY", "sk-test-123")
	path := writeTempConfig(t, `
providers:
  - name: main
    kind: anthropic
    api_key: ${GENFLOW_API_KEY}
agents:
  - id: writer
    provider: main
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers[0].APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q, want env expanded", cfg.Providers[0].APIKey)
	}
	if cfg.Bus.QueueCapacity != 1000 {
		t.Errorf("QueueCapacity default = %d, want 1000", cfg.Bus.QueueCapacity)
	}
	if cfg.Observability.LogFormat != "json" {
		t.Errorf("LogFormat default = %q, want json", cfg.Observability.LogFormat)
	}
}

func TestLoadRejectsDuplicateAgentIDs(t *testing.T) {
	path := writeTempConfig(t, `
agents:
  - id: a
  - id: a
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for duplicate agent ids")
	}
}

func TestLoadRejectsUnsupportedProviderKind(t *testing.T) {
	path := writeTempConfig(t, `
providers:
  - name: main
    kind: not-a-real-provider
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unsupported provider kind")
	}
}

func TestLoadRejectsMultiDocument(t *testing.T) {
	path := writeTempConfig(t, "agents: []\n---\nagents: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for multiple YAML documents")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/genflow.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
