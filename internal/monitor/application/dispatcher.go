package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	monitor "reachstacker-monitor/internal/monitor/domain"
	"reachstacker-monitor/internal/observability/metrics"
)

// Notifier publishes notifications across the presentation boundary.
type Notifier interface {
	Notify(ctx context.Context, notification monitor.Notification)
}

// AudioCue plays the alert tone for an audible notification.
type AudioCue interface {
	Play(ctx context.Context, notification monitor.Notification)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Scope tells which view a fetch was made for.
type Scope string

const (
	// ScopeDetail is the selected unit's full history.
	ScopeDetail Scope = "detail"
	// ScopeOverview is the per-unit status overview.
	ScopeOverview Scope = "overview"
)

// DangerAlertMode selects how per-metric danger alerts repeat.
type DangerAlertMode string

const (
	// DangerAlertLevel fires on every observation inside the danger band.
	DangerAlertLevel DangerAlertMode = "level"
	// DangerAlertEdge fires once per entry into the danger band.
	DangerAlertEdge DangerAlertMode = "edge"
)

// ParseDangerAlertMode validates a mode name.
func ParseDangerAlertMode(value string) (DangerAlertMode, error) {
	switch DangerAlertMode(value) {
	case "", DangerAlertLevel:
		return DangerAlertLevel, nil
	case DangerAlertEdge:
		return DangerAlertEdge, nil
	default:
		return "", fmt.Errorf("monitor: unknown danger alert mode %q", value)
	}
}

// Observation is the result of one fetch for one unit.
type Observation struct {
	UnitID   string
	Scope    Scope
	Tick     uint64
	At       time.Time
	Readings []monitor.Reading
	Err      error
}

// Outcome reports what Observe did.
type Outcome struct {
	State         UnitState
	Notifications []monitor.Notification
	Suppressed    int
	Stale         bool
}

// Dispatcher folds observations into the registry and raises notifications.
type Dispatcher struct {
	registry      *Registry
	preference    *Preference
	thresholds    monitor.Thresholds
	liveness      monitor.LivenessThresholds
	mode          DangerAlertMode
	alertAllUnits bool
	historyLimit  int
	notifier      Notifier
	cue           AudioCue
	clock         Clock
	logger        *log.Logger
}

// DispatcherOption customizes the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithThresholds sets the metric bands.
func WithThresholds(thresholds monitor.Thresholds) DispatcherOption {
	return func(d *Dispatcher) {
		if len(thresholds) > 0 {
			d.thresholds = thresholds
		}
	}
}

// WithLivenessThresholds sets the liveness bounds.
func WithLivenessThresholds(thresholds monitor.LivenessThresholds) DispatcherOption {
	return func(d *Dispatcher) {
		d.liveness = thresholds
	}
}

// WithDangerAlertMode sets level or edge triggered danger alerts.
func WithDangerAlertMode(mode DangerAlertMode) DispatcherOption {
	return func(d *Dispatcher) {
		if mode != "" {
			d.mode = mode
		}
	}
}

// WithAlertAllUnits applies the emergency and danger rules to every unit in
// the overview instead of only the selected unit.
func WithAlertAllUnits(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.alertAllUnits = enabled
	}
}

// WithHistoryLimit caps the readings kept per unit for charting.
func WithHistoryLimit(limit int) DispatcherOption {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.historyLimit = limit
		}
	}
}

// WithNotifier assigns the notification sink.
func WithNotifier(notifier Notifier) DispatcherOption {
	return func(d *Dispatcher) {
		d.notifier = notifier
	}
}

// WithAudioCue assigns the tone player.
func WithAudioCue(cue AudioCue) DispatcherOption {
	return func(d *Dispatcher) {
		d.cue = cue
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(registry *Registry, preference *Preference, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("monitor: nil registry")
	}
	if preference == nil {
		return nil, errors.New("monitor: nil preference")
	}
	d := &Dispatcher{
		registry:     registry,
		preference:   preference,
		thresholds:   monitor.DefaultThresholds(),
		liveness:     monitor.DefaultLivenessThresholds(),
		mode:         DangerAlertLevel,
		historyLimit: 20,
		clock:        systemClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.thresholds.Validate(); err != nil {
		return nil, err
	}
	if err := d.liveness.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseDangerAlertMode(string(d.mode)); err != nil {
		return nil, err
	}
	return d, nil
}

// Preference exposes the notification switch.
func (d *Dispatcher) Preference() *Preference {
	return d.preference
}

// EnableNotifications turns notifications on and sends a silent confirmation.
func (d *Dispatcher) EnableNotifications(ctx context.Context) error {
	if err := d.preference.Enable(ctx); err != nil {
		d.logf("monitor: notifications not enabled: %v", err)
		return err
	}
	d.logf("monitor: notifications enabled")
	d.deliver(ctx, []monitor.Notification{monitor.NewNotificationsEnabled(d.clock.Now())})
	return nil
}

// DisableNotifications turns notifications off.
func (d *Dispatcher) DisableNotifications() {
	d.preference.Disable()
	d.logf("monitor: notifications disabled")
}

// Observe applies one fetch result. Tracking state is updated whether or not
// notifications are enabled.
func (d *Dispatcher) Observe(ctx context.Context, obs Observation) Outcome {
	state, ok := d.registry.Get(obs.UnitID)
	if !ok {
		state = newUnitState(obs.UnitID)
	}
	if obs.Tick < state.AppliedTick {
		metrics.IncStaleResult()
		return Outcome{State: state, Stale: true}
	}

	now := obs.At
	if now.IsZero() {
		now = d.clock.Now()
	}
	previous := state.Status
	alerting := d.alerting(obs.Scope)

	var pending []monitor.Notification
	if obs.Err != nil {
		state.FetchError = obs.Err.Error()
	} else {
		state.FetchError = ""
		pending = d.applyReadings(&state, obs, alerting, now)
	}

	state.Status = monitor.Classify(now, state.LastSeenAt, d.liveness)
	if monitor.ConnectionLost(previous, state.Status) {
		pending = append([]monitor.Notification{monitor.NewConnectionLost(state.UnitID, now)}, pending...)
	}
	state.AppliedTick = obs.Tick
	state.UpdatedAt = now
	d.registry.Upsert(state)

	metrics.SetUnitLiveness(state.UnitID, string(state.Status))
	metrics.SetUnitSeverity(state.UnitID, state.Severity.Rank())

	outcome := Outcome{State: state}
	if len(pending) == 0 {
		return outcome
	}
	if !d.preference.Enabled() {
		for _, n := range pending {
			metrics.IncNotification(string(n.Kind), metrics.OutcomeSuppressed)
		}
		outcome.Suppressed = len(pending)
		return outcome
	}
	d.deliver(ctx, pending)
	outcome.Notifications = pending
	return outcome
}

// applyReadings folds the newest reading into state and returns the
// emergency and danger notifications it raises.
func (d *Dispatcher) applyReadings(state *UnitState, obs Observation, alerting bool, now time.Time) []monitor.Notification {
	if obs.Scope == ScopeDetail && len(obs.Readings) > 0 {
		history := obs.Readings
		if len(history) > d.historyLimit {
			history = history[len(history)-d.historyLimit:]
		}
		state.History = append([]monitor.Reading(nil), history...)
	}
	if len(obs.Readings) == 0 {
		return nil
	}
	latest := obs.Readings[len(obs.Readings)-1]
	if latest.HasTimestamp() {
		if !state.LastSeenAt.IsZero() && latest.Timestamp.Before(state.LastSeenAt) {
			d.logf("monitor: out-of-order sample ignored unit=%s ts=%s last_seen=%s",
				state.UnitID, latest.Timestamp.Format(time.RFC3339), state.LastSeenAt.Format(time.RFC3339))
			return nil
		}
		state.LastSeenAt = latest.Timestamp
	}

	evaluation := monitor.Evaluate(latest, d.thresholds)
	state.Latest = &latest
	state.Severity = evaluation.Severity
	state.Violations = evaluation.Violations

	if !alerting {
		// Any scope may re-arm an edge; only the alerting scope may consume one.
		if !latest.EmergencyStop {
			state.Emergency = false
		}
		for metric := range state.DangerMetrics {
			if !dangerViolation(evaluation, metric) {
				delete(state.DangerMetrics, metric)
			}
		}
		return nil
	}

	var pending []monitor.Notification
	if latest.EmergencyStop && !state.Emergency {
		pending = append(pending, monitor.NewEmergencyStop(state.UnitID, now))
	}
	state.Emergency = latest.EmergencyStop

	danger := make(map[monitor.Metric]bool)
	for _, violation := range evaluation.Danger() {
		danger[violation.Metric] = true
		if d.mode == DangerAlertEdge && state.DangerMetrics[violation.Metric] {
			continue
		}
		pending = append(pending, monitor.NewMetricDanger(state.UnitID, violation.Metric, violation.Value, now))
	}
	state.DangerMetrics = danger
	return pending
}

func dangerViolation(evaluation monitor.Evaluation, metric monitor.Metric) bool {
	for _, violation := range evaluation.Danger() {
		if violation.Metric == metric {
			return true
		}
	}
	return false
}

func (d *Dispatcher) alerting(scope Scope) bool {
	if d.alertAllUnits {
		return scope == ScopeOverview
	}
	return scope == ScopeDetail
}

func (d *Dispatcher) deliver(ctx context.Context, notifications []monitor.Notification) {
	for _, n := range notifications {
		if d.notifier != nil {
			d.notifier.Notify(ctx, n)
		}
		metrics.IncNotification(string(n.Kind), metrics.OutcomeDelivered)
		d.logf("monitor: notification kind=%s unit=%s tag=%s title=%q", n.Kind, n.UnitID, n.Tag, n.Title)
		if n.Audible && d.cue != nil {
			d.cue.Play(ctx, n)
			metrics.IncToneCue()
		}
	}
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
