package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snare.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
monitors:
  - name: checkout
    url: https://checkout.internal/health
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	m := cfg.Monitors[0]
	if m.Mode != ModePoll {
		t.Errorf("expected default mode poll, got %q", m.Mode)
	}
	if m.Interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", m.Interval)
	}
	if m.MaxRetries != 3 {
		t.Errorf("expected default max_retries 3, got %d", m.MaxRetries)
	}
	if m.ContextLines != 50 {
		t.Errorf("expected default context_lines 50, got %d", m.ContextLines)
	}
	if m.LineEnding != "\n" {
		t.Errorf("expected default line ending, got %q", m.LineEnding)
	}
	if cfg.Output.Format != "jsonl" {
		t.Errorf("expected default output format jsonl, got %q", cfg.Output.Format)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
monitors:
  - name: app-logs
    url: ws://logs.internal/stream
    mode: stream
    reconnect_delay: 2s
    max_reconnects: 10
    stacktrace_limit: 200
output:
  path: events.jsonl
  format: jsonl
  console: true
alert:
  threshold: 5
  window: 30s
  reset_on_fire: true
dashboard:
  enabled: true
  port: "9099"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	m := cfg.Monitors[0]
	if m.Mode != ModeStream {
		t.Errorf("expected stream mode, got %q", m.Mode)
	}
	if m.MaxReconnects != 10 {
		t.Errorf("expected max_reconnects 10, got %d", m.MaxReconnects)
	}
	if m.StacktraceLimit != 200 {
		t.Errorf("expected stacktrace_limit 200, got %d", m.StacktraceLimit)
	}
	if cfg.Alert.Threshold != 5 || cfg.Alert.Window != 30*time.Second || !cfg.Alert.ResetOnFire {
		t.Errorf("alert config not parsed: %+v", cfg.Alert)
	}
	if !cfg.Dashboard.Enabled || cfg.Dashboard.Port != "9099" {
		t.Errorf("dashboard config not parsed: %+v", cfg.Dashboard)
	}
}

func TestLoadRejectsEmptyMonitors(t *testing.T) {
	path := writeConfig(t, `output:
  console: true
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for config without monitors")
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeConfig(t, `
monitors:
  - name: x
    url: http://x.local
    mode: teleport
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unsupported mode")
	}
}

func TestMonitorConfigID(t *testing.T) {
	c := MonitorConfig{URL: "http://a.local"}
	if c.ID() != "http://a.local" {
		t.Errorf("expected URL as fallback id, got %q", c.ID())
	}
	c.Name = "api"
	if c.ID() != "api" {
		t.Errorf("expected name as id, got %q", c.ID())
	}
}

func TestValidateRequiresURL(t *testing.T) {
	c := MonitorConfig{Name: "x"}
	c.ApplyDefaults()
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing url")
	}
}
