package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the condition behind a notification.
type Kind string

const (
	KindEmergencyStop        Kind = "emergency_stop"
	KindConnectionLost       Kind = "connection_lost"
	KindMetricDanger         Kind = "metric_danger"
	KindNotificationsEnabled Kind = "notifications_enabled"
)

// Tag is the presentation severity of a notification.
type Tag string

const (
	TagCritical Tag = "critical"
	TagWarning  Tag = "warning"
	TagInfo     Tag = "info"
)

// Notification is one event crossing the presentation boundary. Only critical
// notifications are audible.
type Notification struct {
	ID      string    `json:"id"`
	UnitID  string    `json:"unitId,omitempty"`
	Kind    Kind      `json:"kind"`
	Metric  Metric    `json:"metric,omitempty"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Tag     Tag       `json:"tag"`
	Audible bool      `json:"audible"`
	At      time.Time `json:"at"`
}

type metricText struct {
	title string
	label string
	unit  string
}

var metricTexts = map[Metric]metricText{
	MetricTemperature:  {title: "Temperature Critical", label: "Temperature", unit: "°C"},
	MetricPressure:     {title: "Pressure Critical", label: "Pressure", unit: " bar"},
	MetricHydraulicOil: {title: "Low Oil Level", label: "Hydraulic Oil", unit: "%"},
	MetricFuelLevel:    {title: "Low Fuel", label: "Fuel Level", unit: "%"},
}

func newNotification(unitID string, kind Kind, tag Tag, title, body string, at time.Time) Notification {
	return Notification{
		ID:      uuid.NewString(),
		UnitID:  unitID,
		Kind:    kind,
		Title:   title,
		Body:    body,
		Tag:     tag,
		Audible: tag == TagCritical,
		At:      at.UTC(),
	}
}

// NewEmergencyStop announces an emergency stop activation.
func NewEmergencyStop(unitID string, at time.Time) Notification {
	return newNotification(unitID, KindEmergencyStop, TagCritical,
		"EMERGENCY STOP - "+unitID,
		fmt.Sprintf("Unit %s activated the emergency stop!", unitID), at)
}

// NewConnectionLost announces a unit that went from connected to disconnected.
func NewConnectionLost(unitID string, at time.Time) Notification {
	return newNotification(unitID, KindConnectionLost, TagWarning,
		"Connection Lost - "+unitID,
		fmt.Sprintf("Unit %s has lost its connection to the system", unitID), at)
}

// NewMetricDanger announces a metric in its danger band.
func NewMetricDanger(unitID string, metric Metric, value float64, at time.Time) Notification {
	text, ok := metricTexts[metric]
	if !ok {
		text = metricText{title: string(metric) + " Critical", label: string(metric)}
	}
	n := newNotification(unitID, KindMetricDanger, TagCritical,
		text.title+" - "+unitID,
		fmt.Sprintf("%s: %.1f%s (Critical!)", text.label, value, text.unit), at)
	n.Metric = metric
	return n
}

// NewNotificationsEnabled confirms that notifications were switched on.
func NewNotificationsEnabled(at time.Time) Notification {
	return newNotification("", KindNotificationsEnabled, TagInfo,
		"Notifications Enabled",
		"You will receive emergency alerts", at)
}
