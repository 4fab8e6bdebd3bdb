package monitor

import (
	"math"
	"strconv"
	"strings"
	"time"

	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

// Reading is one sample as the dashboard sees it. Numeric fields follow the
// lossy contract: anything missing or unparsable reads as zero.
type Reading struct {
	UnitID        string    `json:"unitId"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature"`
	Pressure      float64   `json:"pressure"`
	HydraulicOil  float64   `json:"hydraulicOil"`
	FuelLevel     float64   `json:"fuelLevel"`
	EngineRPM     int       `json:"engineRpm"`
	EmergencyStop bool      `json:"emergencyStop"`
}

// HasTimestamp reports whether the sample carried a usable timestamp.
func (r Reading) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// Value returns the reading of a continuous metric.
func (r Reading) Value(metric Metric) (float64, bool) {
	switch metric {
	case MetricTemperature:
		return r.Temperature, true
	case MetricPressure:
		return r.Pressure, true
	case MetricHydraulicOil:
		return r.HydraulicOil, true
	case MetricFuelLevel:
		return r.FuelLevel, true
	default:
		return 0, false
	}
}

// ParseReading decodes a store row keyed by header name.
func ParseReading(unitID string, row telemetry.Row) Reading {
	reading := Reading{
		UnitID:        unitID,
		Temperature:   lossyFloat(row[telemetry.HeaderTemperature]),
		Pressure:      lossyFloat(row[telemetry.HeaderPressure]),
		HydraulicOil:  lossyFloat(row[telemetry.HeaderHydraulicOil]),
		FuelLevel:     lossyFloat(row[telemetry.HeaderFuelLevel]),
		EngineRPM:     int(math.Trunc(lossyFloat(row[telemetry.HeaderEngineRPM]))),
		EmergencyStop: emergencyActive(row[telemetry.HeaderEmergencyStop]),
	}
	if reading.UnitID == "" {
		if id, ok := row[telemetry.HeaderUnitID].(string); ok {
			reading.UnitID = strings.TrimSpace(id)
		}
	}
	if ts, ok := row[telemetry.HeaderTimestamp].(string); ok {
		if parsed, err := telemetry.ParseTimestamp(ts); err == nil {
			reading.Timestamp = parsed
		}
	}
	return reading
}

// ParseReadings decodes rows in order.
func ParseReadings(unitID string, rows []telemetry.Row) []Reading {
	readings := make([]Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, ParseReading(unitID, row))
	}
	return readings
}

func lossyFloat(value any) float64 {
	var parsed float64
	switch v := value.(type) {
	case float64:
		parsed = v
	case int:
		parsed = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		parsed = f
	default:
		return 0
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// emergencyActive is true only for a numeric 1. Strings, booleans and other
// numbers are inactive.
func emergencyActive(value any) bool {
	switch v := value.(type) {
	case float64:
		return v == 1
	case int:
		return v == 1
	default:
		return false
	}
}
