package application

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSpreadsheet = "spreadsheet"
	BackendPostgres    = "postgres"
	BackendMemory      = "memory"
)

// StatusConfig holds the server-side liveness thresholds.
type StatusConfig struct {
	WarningAfter      time.Duration `yaml:"warning_after"`
	DisconnectedAfter time.Duration `yaml:"disconnected_after"`
}

// Config defines the telemetry store configuration.
type Config struct {
	HTTPAddr      string       `yaml:"http_addr"`
	Backend       string       `yaml:"backend"`
	WorkbookPath  string       `yaml:"workbook_path"`
	TemplateSheet string       `yaml:"template_sheet"`
	DatabaseURL   string       `yaml:"database_url"`
	UnitPrefix    string       `yaml:"unit_prefix"`
	RecordLimit   int          `yaml:"record_limit"`
	SeedUnits     []string     `yaml:"seed_units"`
	Status        StatusConfig `yaml:"status"`
}

// LoadConfig loads defaults, then the yaml file named by STORE_CONFIG, then env overrides.
func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPAddr:      ":8090",
		Backend:       BackendSpreadsheet,
		WorkbookPath:  "var/telemetry/reach_stackers.xlsx",
		TemplateSheet: "Sheet1",
		UnitPrefix:    defaultUnitPrefix,
		RecordLimit:   defaultRecordLimit,
		Status: StatusConfig{
			WarningAfter:      defaultWarningAfter,
			DisconnectedAfter: defaultDisconnectedAfter,
		},
	}

	if path := os.Getenv("STORE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Backend = strings.ToLower(getenvDefault("STORE_BACKEND", cfg.Backend))
	cfg.WorkbookPath = getenvDefault("XLSX_PATH", cfg.WorkbookPath)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.UnitPrefix = getenvDefault("UNIT_PREFIX", cfg.UnitPrefix)
	cfg.RecordLimit = getenvIntDefault("RECORD_LIMIT", cfg.RecordLimit)
	cfg.Status.WarningAfter = getenvDurationDefault("STATUS_WARNING_AFTER", cfg.Status.WarningAfter)
	cfg.Status.DisconnectedAfter = getenvDurationDefault("STATUS_DISCONNECTED_AFTER", cfg.Status.DisconnectedAfter)
	if seed := splitCSV(os.Getenv("SEED_UNITS")); len(seed) > 0 {
		cfg.SeedUnits = seed
	}

	switch cfg.Backend {
	case BackendSpreadsheet, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, errors.New("telemetry: DATABASE_URL required for postgres backend")
		}
	default:
		return cfg, errors.New("telemetry: unknown store backend " + cfg.Backend)
	}
	if cfg.RecordLimit <= 0 {
		return cfg, errors.New("telemetry: record limit must be positive")
	}
	if cfg.Status.WarningAfter <= 0 || cfg.Status.WarningAfter >= cfg.Status.DisconnectedAfter {
		return cfg, errors.New("telemetry: invalid status thresholds")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
