package application

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

// AlertConfig controls alert repetition and scope.
type AlertConfig struct {
	DangerMode DangerAlertMode `yaml:"danger_mode"`
	AllUnits   bool            `yaml:"all_units"`
}

// KafkaConfig configures the notification topic.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// NotificationConfig configures notification delivery.
type NotificationConfig struct {
	RequireSubscriber bool        `yaml:"require_subscriber"`
	WebhookURL        string      `yaml:"webhook_url"`
	WebhookTemplate   string      `yaml:"webhook_template"`
	Kafka             KafkaConfig `yaml:"kafka"`
}

// ToneConfig shapes the audible cue.
type ToneConfig struct {
	FrequencyHz float64       `yaml:"frequency_hz"`
	Duration    time.Duration `yaml:"duration"`
	Gain        float64       `yaml:"gain"`
	FloorGain   float64       `yaml:"floor_gain"`
	SampleRate  int           `yaml:"sample_rate"`
}

// ChartConfig bounds the history kept for charts.
type ChartConfig struct {
	MaxPoints int `yaml:"max_points"`
}

// Config defines the dashboard configuration.
type Config struct {
	HTTPAddr        string                     `yaml:"http_addr"`
	StoreURL        string                     `yaml:"store_url"`
	RefreshInterval time.Duration              `yaml:"refresh_interval"`
	FetchTimeout    time.Duration              `yaml:"fetch_timeout"`
	Units           []string                   `yaml:"units"`
	DefaultUnit     string                     `yaml:"default_unit"`
	Liveness        monitor.LivenessThresholds `yaml:"liveness"`
	Thresholds      monitor.Thresholds         `yaml:"thresholds"`
	Alerts          AlertConfig                `yaml:"alerts"`
	Notifications   NotificationConfig         `yaml:"notifications"`
	Tone            ToneConfig                 `yaml:"tone"`
	Chart           ChartConfig                `yaml:"chart"`
}

// DefaultConfig returns the built-in dashboard settings.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		StoreURL:        "http://localhost:8090/",
		RefreshInterval: defaultRefreshInterval,
		FetchTimeout:    defaultFetchTimeout,
		Units:           []string{"RS-A", "RS-B", "RS-C"},
		Liveness:        monitor.DefaultLivenessThresholds(),
		Thresholds:      monitor.DefaultThresholds(),
		Alerts:          AlertConfig{DangerMode: DangerAlertLevel},
		Notifications:   NotificationConfig{RequireSubscriber: true},
		Tone: ToneConfig{
			FrequencyHz: 800,
			Duration:    500 * time.Millisecond,
			Gain:        0.3,
			FloorGain:   0.01,
			SampleRate:  22050,
		},
		Chart: ChartConfig{MaxPoints: 20},
	}
}

// LoadConfig loads defaults, then the yaml file named by MONITOR_CONFIG, then
// env overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("MONITOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.StoreURL = getenvDefault("STORE_URL", cfg.StoreURL)
	cfg.RefreshInterval = getenvDurationDefault("REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.FetchTimeout = getenvDurationDefault("FETCH_TIMEOUT", cfg.FetchTimeout)
	if units := splitCSV(os.Getenv("UNITS")); len(units) > 0 {
		cfg.Units = units
	}
	cfg.DefaultUnit = getenvDefault("DEFAULT_UNIT", cfg.DefaultUnit)
	cfg.Liveness.DegradedAfter = getenvDurationDefault("LIVENESS_DEGRADED_AFTER", cfg.Liveness.DegradedAfter)
	cfg.Liveness.DisconnectedAfter = getenvDurationDefault("LIVENESS_DISCONNECTED_AFTER", cfg.Liveness.DisconnectedAfter)
	cfg.Alerts.DangerMode = DangerAlertMode(getenvDefault("DANGER_ALERT_MODE", string(cfg.Alerts.DangerMode)))
	cfg.Alerts.AllUnits = getenvBoolDefault("ALERT_ALL_UNITS", cfg.Alerts.AllUnits)
	cfg.Notifications.RequireSubscriber = getenvBoolDefault("NOTIFY_REQUIRE_SUBSCRIBER", cfg.Notifications.RequireSubscriber)
	cfg.Notifications.WebhookURL = getenvDefault("NOTIFY_WEBHOOK_URL", cfg.Notifications.WebhookURL)
	if brokers := splitCSV(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Notifications.Kafka.Brokers = brokers
	}
	cfg.Notifications.Kafka.Topic = getenvDefault("KAFKA_NOTIFICATION_TOPIC", cfg.Notifications.Kafka.Topic)
	cfg.Chart.MaxPoints = getenvIntDefault("CHART_MAX_POINTS", cfg.Chart.MaxPoints)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.StoreURL) == "" {
		return errors.New("monitor: store url required")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("monitor: refresh interval must be positive")
	}
	if len(c.Units) == 0 {
		return errors.New("monitor: at least one unit required")
	}
	if c.DefaultUnit != "" && !contains(c.Units, c.DefaultUnit) {
		return errors.New("monitor: default unit is not a configured unit")
	}
	if err := c.Liveness.Validate(); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if _, err := ParseDangerAlertMode(string(c.Alerts.DangerMode)); err != nil {
		return err
	}
	if len(c.Notifications.Kafka.Brokers) > 0 && c.Notifications.Kafka.Topic == "" {
		return errors.New("monitor: kafka topic required when brokers are set")
	}
	if c.Chart.MaxPoints <= 0 {
		return errors.New("monitor: chart max points must be positive")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
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

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
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
