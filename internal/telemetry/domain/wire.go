package telemetry

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Response status values of the store envelope.
const (
	ResponseSuccess = "success"
	ResponseError   = "error"
)

// Server-side liveness labels of the status summary.
const (
	SummaryConnected    = "connected"
	SummaryWarning      = "warning"
	SummaryDisconnected = "disconnected"
	SummaryNoData       = "no_data"
)

// Query ids with special meaning on GET.
const (
	QueryAll    = "all"
	QueryStatus = "status"
)

// WriteResponse answers a POST.
type WriteResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// UnitResponse answers GET ?id=<unit>.
type UnitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	UnitID  string `json:"unitId,omitempty"`
	Data    []Row  `json:"data,omitempty"`
}

// AllResponse answers GET ?id=all.
type AllResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message,omitempty"`
	Data    map[string][]Row `json:"data,omitempty"`
}

// StatusEntry is the server-side liveness summary of one unit.
type StatusEntry struct {
	Status     string  `json:"status"`
	LastSeen   *string `json:"lastSeen"`
	MinutesAgo *int    `json:"minutesAgo"`
}

// StatusResponse answers GET ?id=status.
type StatusResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]StatusEntry `json:"data,omitempty"`
}

// Payload is the body a unit POSTs. Numeric fields stay raw so the store can
// decide per field whether the value is usable.
type Payload struct {
	UnitID        string          `json:"unitId,omitempty"`
	LegacyUnitID  string          `json:"reachStackerID,omitempty"`
	Temperature   json.RawMessage `json:"temperature,omitempty"`
	Pressure      json.RawMessage `json:"pressure,omitempty"`
	HydraulicOil  json.RawMessage `json:"hydraulicOil,omitempty"`
	FuelLevel     json.RawMessage `json:"fuelLevel,omitempty"`
	EngineRPM     json.RawMessage `json:"engineRpm,omitempty"`
	LegacyRPM     json.RawMessage `json:"engineRPM,omitempty"`
	EmergencyStop json.RawMessage `json:"emergencyStop,omitempty"`
}

// NewPayload builds a payload from plain values.
func NewPayload(unitID string, temperature, pressure, hydraulicOil, fuelLevel float64, engineRPM int, emergencyStop int) Payload {
	return Payload{
		UnitID:        unitID,
		Temperature:   rawNumber(temperature),
		Pressure:      rawNumber(pressure),
		HydraulicOil:  rawNumber(hydraulicOil),
		FuelLevel:     rawNumber(fuelLevel),
		EngineRPM:     rawNumber(float64(engineRPM)),
		EmergencyStop: rawNumber(float64(emergencyStop)),
	}
}

// Record converts the payload. The timestamp is left for the store to assign.
func (p Payload) Record() Record {
	unitID := strings.TrimSpace(p.UnitID)
	if unitID == "" {
		unitID = strings.TrimSpace(p.LegacyUnitID)
	}
	rpm := p.EngineRPM
	if len(rpm) == 0 {
		rpm = p.LegacyRPM
	}
	return Record{
		UnitID:        unitID,
		Temperature:   parseRaw(p.Temperature),
		Pressure:      parseRaw(p.Pressure),
		HydraulicOil:  parseRaw(p.HydraulicOil),
		FuelLevel:     parseRaw(p.FuelLevel),
		EngineRPM:     parseRaw(rpm),
		EmergencyStop: parseRaw(p.EmergencyStop),
	}
}

// parseRaw accepts JSON numbers and numeric strings; anything else is dropped.
func parseRaw(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		if !finite(&number) {
			return nil
		}
		return &number
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || !finite(&parsed) {
		return nil
	}
	return &parsed
}

func rawNumber(value float64) json.RawMessage {
	return json.RawMessage(strconv.FormatFloat(value, 'f', -1, 64))
}
