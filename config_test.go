package council

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "council.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
members:
  - openai/gpt-5.1
  - google/gemini-3-pro
  - anthropic/claude-sonnet-4.5
aggregator: google/gemini-3-pro
timeout: 90s
verbose: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(cfg.Members))
	}
	if cfg.Members[0] != "openai/gpt-5.1" {
		t.Errorf("unexpected first member: %q", cfg.Members[0])
	}
	if cfg.Aggregator != "google/gemini-3-pro" {
		t.Errorf("unexpected aggregator: %q", cfg.Aggregator)
	}
	if cfg.Timeout != "90s" {
		t.Errorf("unexpected timeout: %q", cfg.Timeout)
	}
	if cfg.Verbose == nil || *cfg.Verbose {
		t.Errorf("expected verbose false, got %v", cfg.Verbose)
	}
}

func TestLoadConfigDefaultsUnset(t *testing.T) {
	path := writeConfigFile(t, `
members:
  - m1
  - m2
aggregator: m1
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeout != "" {
		t.Errorf("expected empty timeout, got %q", cfg.Timeout)
	}
	if cfg.Verbose != nil {
		t.Errorf("expected nil verbose, got %v", *cfg.Verbose)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "members: [unclosed")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestConfigRoster(t *testing.T) {
	cfg := &Config{
		Members:    []string{"m1", "m2", "m3"},
		Aggregator: "m2",
	}

	roster, err := cfg.Roster()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roster.Size() != 3 {
		t.Errorf("expected 3 participants, got %d", roster.Size())
	}
	if roster.Aggregator.ID != "m2" {
		t.Errorf("unexpected aggregator: %q", roster.Aggregator.ID)
	}
}

func TestConfigCouncil(t *testing.T) {
	verbose := false
	cfg := &Config{
		Members:    []string{"m1", "m2", "m3"},
		Aggregator: "m2",
		Timeout:    "45s",
		Verbose:    &verbose,
	}

	c, err := cfg.Council(newMockGateway("m1", "m2", "m3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.timeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", c.timeout)
	}
	if c.verbose {
		t.Error("expected verbose false")
	}
}

func TestConfigCouncilDefaults(t *testing.T) {
	cfg := &Config{
		Members:    []string{"m1", "m2"},
		Aggregator: "m1",
	}

	c, err := cfg.Council(newMockGateway("m1", "m2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", c.timeout)
	}
	if !c.verbose {
		t.Error("expected verbose true by default")
	}
}

func TestConfigCouncilInvalidTimeout(t *testing.T) {
	cfg := &Config{
		Members:    []string{"m1", "m2"},
		Aggregator: "m1",
		Timeout:    "ninety seconds",
	}

	_, err := cfg.Council(newMockGateway("m1", "m2"))
	if err == nil {
		t.Fatal("expected error for invalid timeout")
	}
}

func TestConfigCouncilInvalidRoster(t *testing.T) {
	cfg := &Config{
		Members:    []string{"m1", "m1"},
		Aggregator: "m1",
	}

	_, err := cfg.Council(newMockGateway("m1"))
	if err == nil {
		t.Fatal("expected error for duplicate members")
	}
}
