package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
discord:
  token: "abc"
storage:
  path: "./data/bump.db"
reminder:
  delay: "90m"
  mention_role_id: "123"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.Token != "abc" {
		t.Fatalf("token = %q", cfg.Discord.Token)
	}
	d, err := cfg.ReminderDelay()
	if err != nil || d != 90*time.Minute {
		t.Fatalf("delay = %v err=%v, want 90m", d, err)
	}
	if got := cfg.CleanupSpec(); got != "@hourly" {
		t.Fatalf("cleanup spec default = %q, want @hourly", got)
	}
	r, err := cfg.ReminderRetention()
	if err != nil || r != 30*24*time.Hour {
		t.Fatalf("retention default = %v err=%v", r, err)
	}
	if !cfg.ConsoleEnabled() {
		t.Fatalf("console should default to enabled")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
discord:
  token: "abc"
  typo_field: true
storage:
  path: "./bump.db"
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestValidateRequiresToken(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
storage:
  path: "./bump.db"
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatalf("expected missing-token error")
	}
}

func TestParseDurationField(t *testing.T) {
	if _, err := ParseDurationField("x", "not-a-duration"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseDurationField("x", "-5m"); err == nil {
		t.Fatalf("expected negative-duration error")
	}
	d, err := ParseDurationOrDefault("x", "", 2*time.Hour)
	if err != nil || d != 2*time.Hour {
		t.Fatalf("default = %v err=%v", d, err)
	}
}
