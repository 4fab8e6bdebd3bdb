package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	content := []byte(`
backend: memory
unit_prefix: "UNIT-"
record_limit: 50
seed_units: ["UNIT-1", "UNIT-2"]
status:
  warning_after: 2m
  disconnected_after: 10m
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STORE_CONFIG", path)
	t.Setenv("RECORD_LIMIT", "25")
	t.Setenv("SEED_UNITS", "")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.UnitPrefix != "UNIT-" {
		t.Fatalf("unexpected file values %+v", cfg)
	}
	if cfg.RecordLimit != 25 {
		t.Fatalf("expected env override of record limit, got %d", cfg.RecordLimit)
	}
	if len(cfg.SeedUnits) != 2 {
		t.Fatalf("expected seed units from file, got %v", cfg.SeedUnits)
	}
	if cfg.Status.WarningAfter != 2*time.Minute || cfg.Status.DisconnectedAfter != 10*time.Minute {
		t.Fatalf("unexpected status thresholds %+v", cfg.Status)
	}
}

func TestLoadConfigRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORE_CONFIG", "")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}
