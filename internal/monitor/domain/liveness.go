package monitor

import (
	"errors"
	"time"
)

// Status is the derived connectivity of a unit.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusConnected    Status = "connected"
	StatusDegraded     Status = "degraded"
	StatusDisconnected Status = "disconnected"
)

// LivenessThresholds bounds the age of the last reading per status.
type LivenessThresholds struct {
	DegradedAfter     time.Duration `yaml:"degraded_after"`
	DisconnectedAfter time.Duration `yaml:"disconnected_after"`
}

// DefaultLivenessThresholds returns the 1 and 5 minute thresholds.
func DefaultLivenessThresholds() LivenessThresholds {
	return LivenessThresholds{
		DegradedAfter:     time.Minute,
		DisconnectedAfter: 5 * time.Minute,
	}
}

// Validate checks the thresholds are positive and ordered.
func (t LivenessThresholds) Validate() error {
	if t.DegradedAfter <= 0 || t.DisconnectedAfter <= 0 {
		return errors.New("monitor: liveness thresholds must be positive")
	}
	if t.DegradedAfter >= t.DisconnectedAfter {
		return errors.New("monitor: degraded threshold must be below disconnected threshold")
	}
	return nil
}

// Classify maps the age of the last reading to a status. A zero lastSeenAt
// means no reading yet. Readings from the future count as fresh.
func Classify(now, lastSeenAt time.Time, thresholds LivenessThresholds) Status {
	if lastSeenAt.IsZero() {
		return StatusUnknown
	}
	age := now.Sub(lastSeenAt)
	if age < 0 {
		age = 0
	}
	switch {
	case age > thresholds.DisconnectedAfter:
		return StatusDisconnected
	case age > thresholds.DegradedAfter:
		return StatusDegraded
	default:
		return StatusConnected
	}
}

// ConnectionLost reports the one transition that raises a connection alert.
func ConnectionLost(previous, current Status) bool {
	return previous == StatusConnected && current == StatusDisconnected
}
