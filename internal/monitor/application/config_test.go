package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MONITOR_CONFIG", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RefreshInterval != 10*time.Second || cfg.Chart.MaxPoints != 20 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Alerts.DangerMode != DangerAlertLevel {
		t.Fatalf("expected level mode by default, got %s", cfg.Alerts.DangerMode)
	}
	if cfg.Thresholds[monitor.MetricFuelLevel].Danger != 20 {
		t.Fatalf("unexpected fuel thresholds %+v", cfg.Thresholds[monitor.MetricFuelLevel])
	}
}

func TestLoadConfigFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	content := []byte(`
store_url: "http://store.local/exec"
refresh_interval: 5s
units: ["RS-01", "RS-02", "RS-03", "RS-04"]
default_unit: RS-02
liveness:
  degraded_after: 30s
  disconnected_after: 2m
thresholds:
  temperature:
    warning: 70
    danger: 85
alerts:
  danger_mode: edge
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MONITOR_CONFIG", path)
	t.Setenv("ALERT_ALL_UNITS", "true")
	t.Setenv("REFRESH_INTERVAL", "3s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreURL != "http://store.local/exec" || len(cfg.Units) != 4 || cfg.DefaultUnit != "RS-02" {
		t.Fatalf("unexpected file values %+v", cfg)
	}
	if cfg.RefreshInterval != 3*time.Second {
		t.Fatalf("expected env refresh interval, got %v", cfg.RefreshInterval)
	}
	if cfg.Liveness.DisconnectedAfter != 2*time.Minute {
		t.Fatalf("unexpected liveness %+v", cfg.Liveness)
	}
	if cfg.Thresholds[monitor.MetricTemperature].Danger != 85 {
		t.Fatalf("expected temperature override, got %+v", cfg.Thresholds[monitor.MetricTemperature])
	}
	if cfg.Thresholds[monitor.MetricPressure].Danger != 150 {
		t.Fatalf("expected pressure default to survive, got %+v", cfg.Thresholds[monitor.MetricPressure])
	}
	if cfg.Alerts.DangerMode != DangerAlertEdge || !cfg.Alerts.AllUnits {
		t.Fatalf("unexpected alert config %+v", cfg.Alerts)
	}
}

func TestConfigValidateRejectsUnknownDefaultUnit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultUnit = "RS-Z"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown default unit")
	}
	cfg = DefaultConfig()
	cfg.Alerts.DangerMode = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown danger mode")
	}
}
