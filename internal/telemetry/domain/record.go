package telemetry

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column headers of a unit sheet. They double as the JSON keys of a record row
// and must stay byte-identical so written fields are recoverable on read.
const (
	HeaderTimestamp     = "Timestamp"
	HeaderUnitID        = "Reach Stacker ID"
	HeaderTemperature   = "Temperature (°C)"
	HeaderPressure      = "Pressure (bar)"
	HeaderHydraulicOil  = "Hydraulic Oil (%)"
	HeaderFuelLevel     = "Fuel Level (%)"
	HeaderEngineRPM     = "Engine RPM"
	HeaderEmergencyStop = "Emergency Stop"
)

// Headers lists the sheet columns in order.
var Headers = []string{
	HeaderTimestamp,
	HeaderUnitID,
	HeaderTemperature,
	HeaderPressure,
	HeaderHydraulicOil,
	HeaderFuelLevel,
	HeaderEngineRPM,
	HeaderEmergencyStop,
}

// TimestampLayout is the wire format of record timestamps (millisecond ISO-8601).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultUnitID is used when a writer omits its unit id.
const DefaultUnitID = "UNKNOWN"

var (
	// ErrUnknownUnit indicates a unit without a provisioned log.
	ErrUnknownUnit = errors.New("telemetry: unknown unit")
	// ErrEmptyUnitID indicates a missing unit id.
	ErrEmptyUnitID = errors.New("telemetry: empty unit id")
)

// Record is one stored telemetry sample. Numeric fields are nil when the writer
// sent nothing usable for them.
type Record struct {
	Timestamp     time.Time
	UnitID        string
	Temperature   *float64
	Pressure      *float64
	HydraulicOil  *float64
	FuelLevel     *float64
	EngineRPM     *float64
	EmergencyStop *float64
}

// Row is a record keyed by sheet header, as served to readers.
type Row map[string]any

// Store is the append-only per-unit reading log.
type Store interface {
	EnsureUnit(ctx context.Context, unitID string) error
	Append(ctx context.Context, record Record) error
	// Latest returns up to limit most recent records in write order.
	Latest(ctx context.Context, unitID string, limit int) ([]Record, error)
	Units(ctx context.Context) ([]string, error)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Row renders the record keyed by header. Missing values render as empty
// strings, matching an empty sheet cell.
func (r Record) Row() Row {
	row := Row{
		HeaderTimestamp: formatTimestamp(r.Timestamp),
		HeaderUnitID:    r.UnitID,
	}
	for header, value := range r.numericFields() {
		if !finite(value) {
			row[header] = ""
			continue
		}
		row[header] = *value
	}
	return row
}

// Cells returns the record values in Headers order. Nil entries are empty cells.
func (r Record) Cells() []any {
	fields := r.numericFields()
	cells := make([]any, 0, len(Headers))
	cells = append(cells, formatTimestamp(r.Timestamp), r.UnitID)
	for _, header := range Headers[2:] {
		if value := fields[header]; finite(value) {
			cells = append(cells, *value)
			continue
		}
		cells = append(cells, nil)
	}
	return cells
}

// RecordFromCells rebuilds a record from raw cell strings keyed by the header row.
func RecordFromCells(header, cells []string) Record {
	var record Record
	for i, name := range header {
		value := ""
		if i < len(cells) {
			value = strings.TrimSpace(cells[i])
		}
		switch name {
		case HeaderTimestamp:
			record.Timestamp, _ = ParseTimestamp(value)
		case HeaderUnitID:
			record.UnitID = value
		default:
			if target := record.numericTarget(name); target != nil {
				*target = parseCell(value)
			}
		}
	}
	return record
}

// ParseTimestamp accepts the wire layout and RFC3339 variants.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("telemetry: empty timestamp")
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, errors.New("telemetry: invalid timestamp")
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(TimestampLayout)
}

func (r Record) numericFields() map[string]*float64 {
	return map[string]*float64{
		HeaderTemperature:   r.Temperature,
		HeaderPressure:      r.Pressure,
		HeaderHydraulicOil:  r.HydraulicOil,
		HeaderFuelLevel:     r.FuelLevel,
		HeaderEngineRPM:     r.EngineRPM,
		HeaderEmergencyStop: r.EmergencyStop,
	}
}

func (r *Record) numericTarget(header string) **float64 {
	switch header {
	case HeaderTemperature:
		return &r.Temperature
	case HeaderPressure:
		return &r.Pressure
	case HeaderHydraulicOil:
		return &r.HydraulicOil
	case HeaderFuelLevel:
		return &r.FuelLevel
	case HeaderEngineRPM:
		return &r.EngineRPM
	case HeaderEmergencyStop:
		return &r.EmergencyStop
	default:
		return nil
	}
}

func parseCell(value string) *float64 {
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || !finite(&parsed) {
		return nil
	}
	return &parsed
}

// finite reports whether v holds a value JSON can carry. NaN and ±Inf are
// stored as empty.
func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
