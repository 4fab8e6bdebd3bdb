package monitor

import (
	"errors"
	"fmt"
	"math"
)

// Severity is the aggregate threshold classification of a reading.
type Severity string

const (
	SeverityNormal  Severity = "normal"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Rank orders severities: normal 0, warning 1, danger 2.
func (s Severity) Rank() int {
	switch s {
	case SeverityDanger:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Metric names a continuous reading with thresholds.
type Metric string

const (
	MetricTemperature  Metric = "temperature"
	MetricPressure     Metric = "pressure"
	MetricHydraulicOil Metric = "hydraulicOil"
	MetricFuelLevel    Metric = "fuelLevel"
)

// Metrics lists the thresholded metrics in evaluation order.
var Metrics = []Metric{MetricTemperature, MetricPressure, MetricHydraulicOil, MetricFuelLevel}

// Direction is the side of a threshold that is out of bounds.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// Band is the warning/danger pair of one metric. Without an explicit direction
// a danger value above the warning value means high readings are bad; equal
// values need a direction.
type Band struct {
	Warning   float64   `yaml:"warning" json:"warning"`
	Danger    float64   `yaml:"danger" json:"danger"`
	Direction Direction `yaml:"direction,omitempty" json:"direction,omitempty"`
}

// EffectiveDirection resolves the band direction.
func (b Band) EffectiveDirection() Direction {
	if b.Direction != "" {
		return b.Direction
	}
	if b.Danger >= b.Warning {
		return Above
	}
	return Below
}

// Level classifies a single value against the band. Bounds are exclusive.
func (b Band) Level(value float64) Severity {
	if b.EffectiveDirection() == Below {
		switch {
		case value < b.Danger:
			return SeverityDanger
		case value < b.Warning:
			return SeverityWarning
		}
		return SeverityNormal
	}
	switch {
	case value > b.Danger:
		return SeverityDanger
	case value > b.Warning:
		return SeverityWarning
	}
	return SeverityNormal
}

// Thresholds maps each metric to its band.
type Thresholds map[Metric]Band

// DefaultThresholds returns the factory bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MetricTemperature:  {Warning: 80, Danger: 90},
		MetricPressure:     {Warning: 130, Danger: 150},
		MetricHydraulicOil: {Warning: 50, Danger: 30},
		MetricFuelLevel:    {Warning: 40, Danger: 20},
	}
}

// Validate rejects unknown metrics, non-finite values and inconsistent directions.
func (t Thresholds) Validate() error {
	if len(t) == 0 {
		return errors.New("monitor: empty thresholds")
	}
	for metric, band := range t {
		if !knownMetric(metric) {
			return fmt.Errorf("monitor: unknown threshold metric %q", metric)
		}
		if math.IsNaN(band.Warning) || math.IsNaN(band.Danger) || math.IsInf(band.Warning, 0) || math.IsInf(band.Danger, 0) {
			return fmt.Errorf("monitor: non-finite threshold for %s", metric)
		}
		switch band.Direction {
		case "":
			if band.Danger == band.Warning {
				return fmt.Errorf("monitor: %s needs an explicit direction when warning equals danger", metric)
			}
		case Above:
			if band.Danger < band.Warning {
				return fmt.Errorf("monitor: %s danger must not be below warning", metric)
			}
		case Below:
			if band.Danger > band.Warning {
				return fmt.Errorf("monitor: %s danger must not be above warning", metric)
			}
		default:
			return fmt.Errorf("monitor: invalid direction %q for %s", band.Direction, metric)
		}
	}
	return nil
}

// Violation is one metric outside its normal band.
type Violation struct {
	Metric Metric   `json:"metric"`
	Value  float64  `json:"value"`
	Level  Severity `json:"level"`
}

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	Severity   Severity    `json:"severity"`
	Violations []Violation `json:"violations"`
}

// Danger returns the violations in the danger band.
func (e Evaluation) Danger() []Violation {
	var out []Violation
	for _, violation := range e.Violations {
		if violation.Level == SeverityDanger {
			out = append(out, violation)
		}
	}
	return out
}

// Violated reports whether the metric is out of its normal band.
func (e Evaluation) Violated(metric Metric) bool {
	for _, violation := range e.Violations {
		if violation.Metric == metric {
			return true
		}
	}
	return false
}

// Evaluate classifies a reading. Engine RPM and the emergency flag are not
// part of the aggregate.
func Evaluate(reading Reading, thresholds Thresholds) Evaluation {
	evaluation := Evaluation{Severity: SeverityNormal, Violations: []Violation{}}
	for _, metric := range Metrics {
		band, ok := thresholds[metric]
		if !ok {
			continue
		}
		value, _ := reading.Value(metric)
		level := band.Level(value)
		if level == SeverityNormal {
			continue
		}
		evaluation.Violations = append(evaluation.Violations, Violation{Metric: metric, Value: value, Level: level})
		if level.Rank() > evaluation.Severity.Rank() {
			evaluation.Severity = level
		}
	}
	return evaluation
}

func knownMetric(metric Metric) bool {
	for _, candidate := range Metrics {
		if candidate == metric {
			return true
		}
	}
	return false
}
