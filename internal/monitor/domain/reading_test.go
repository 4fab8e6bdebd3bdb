package monitor

import (
	"strings"
	"testing"
	"time"

	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

func TestParseReadingLossyDefaults(t *testing.T) {
	row := telemetry.Row{
		telemetry.HeaderTimestamp:     "2026-06-01T10:00:00.000Z",
		telemetry.HeaderUnitID:        "RS-01",
		telemetry.HeaderTemperature:   "88.4",
		telemetry.HeaderPressure:      "",
		telemetry.HeaderHydraulicOil:  "oil?",
		telemetry.HeaderEngineRPM:     1750.9,
		telemetry.HeaderEmergencyStop: 1.0,
	}
	reading := ParseReading("", row)
	if reading.UnitID != "RS-01" {
		t.Fatalf("expected unit id from row, got %q", reading.UnitID)
	}
	if reading.Temperature != 88.4 {
		t.Fatalf("expected numeric string to parse, got %v", reading.Temperature)
	}
	if reading.Pressure != 0 || reading.HydraulicOil != 0 || reading.FuelLevel != 0 {
		t.Fatalf("expected lossy zero defaults, got %+v", reading)
	}
	if reading.EngineRPM != 1750 {
		t.Fatalf("expected truncated rpm, got %d", reading.EngineRPM)
	}
	if !reading.EmergencyStop {
		t.Fatalf("expected emergency active for numeric 1")
	}
	if !reading.Timestamp.Equal(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", reading.Timestamp)
	}
}

func TestParseReadingEmergencyOnlyForNumericOne(t *testing.T) {
	for _, value := range []any{"1", true, 2.0, 0.0, "", nil, 1.5} {
		reading := ParseReading("RS-01", telemetry.Row{telemetry.HeaderEmergencyStop: value})
		if reading.EmergencyStop {
			t.Fatalf("expected %v (%T) to be inactive", value, value)
		}
	}
}

func TestParseReadingWithoutTimestamp(t *testing.T) {
	reading := ParseReading("RS-02", telemetry.Row{telemetry.HeaderTimestamp: "garbage"})
	if reading.HasTimestamp() {
		t.Fatalf("expected no timestamp")
	}
}

func TestNotificationTexts(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	n := NewMetricDanger("RS-01", MetricTemperature, 95, at)
	if n.Title != "Temperature Critical - RS-01" || n.Body != "Temperature: 95.0°C (Critical!)" {
		t.Fatalf("unexpected text %q / %q", n.Title, n.Body)
	}
	if !n.Audible || n.Tag != TagCritical || n.ID == "" {
		t.Fatalf("expected audible critical notification with id, got %+v", n)
	}
	lost := NewConnectionLost("RS-02", at)
	if lost.Audible || lost.Tag != TagWarning {
		t.Fatalf("expected silent warning, got %+v", lost)
	}
	if !strings.HasPrefix(NewEmergencyStop("RS-03", at).Title, "EMERGENCY STOP") {
		t.Fatalf("unexpected emergency title")
	}
	if NewNotificationsEnabled(at).Audible {
		t.Fatalf("expected confirmation to be silent")
	}
	if NewMetricDanger("RS-01", MetricFuelLevel, 12, at).ID == n.ID {
		t.Fatalf("expected unique ids")
	}
}
