package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []monitor.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n monitor.Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) Kinds() []monitor.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]monitor.Kind, 0, len(r.notifications))
	for _, n := range r.notifications {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func (r *recordingNotifier) Count(kind monitor.Kind) int {
	count := 0
	for _, k := range r.Kinds() {
		if k == kind {
			count++
		}
	}
	return count
}

type countingCue struct {
	mu    sync.Mutex
	plays int
}

func (c *countingCue) Play(_ context.Context, _ monitor.Notification) {
	c.mu.Lock()
	c.plays++
	c.mu.Unlock()
}

func (c *countingCue) Plays() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays
}

type stubPermission struct {
	granted bool
	err     error
}

func (s stubPermission) RequestPermission(_ context.Context) (bool, error) {
	return s.granted, s.err
}

var t0 = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func nominal(at time.Time) monitor.Reading {
	return monitor.Reading{UnitID: "RS-A", Timestamp: at, Temperature: 70, Pressure: 100, HydraulicOil: 60, FuelLevel: 60, EngineRPM: 1500}
}

func newTestDispatcher(t *testing.T, enabled bool, opts ...DispatcherOption) (*Dispatcher, *recordingNotifier, *countingCue) {
	t.Helper()
	notifier := &recordingNotifier{}
	cue := &countingCue{}
	preference := NewPreference(nil)
	if enabled {
		if err := preference.Enable(context.Background()); err != nil {
			t.Fatalf("enable: %v", err)
		}
	}
	opts = append([]DispatcherOption{WithNotifier(notifier), WithAudioCue(cue)}, opts...)
	dispatcher, err := NewDispatcher(NewRegistry([]string{"RS-A", "RS-B"}), preference, opts...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return dispatcher, notifier, cue
}

func detail(tick uint64, at time.Time, readings ...monitor.Reading) Observation {
	return Observation{UnitID: "RS-A", Scope: ScopeDetail, Tick: tick, At: at, Readings: readings}
}

func TestEmergencyFiresOnRisingEdgeOnly(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true)
	sequence := []bool{false, false, true, true, true, false, true}
	var fired []int
	for i, active := range sequence {
		at := t0.Add(time.Duration(i) * 10 * time.Second)
		reading := nominal(at)
		reading.EmergencyStop = active
		outcome := dispatcher.Observe(context.Background(), detail(uint64(i+1), at, reading))
		for _, n := range outcome.Notifications {
			if n.Kind == monitor.KindEmergencyStop {
				fired = append(fired, i)
			}
		}
	}
	if len(fired) != 2 || fired[0] != 2 || fired[1] != 6 {
		t.Fatalf("expected emergency at indexes 2 and 6, got %v", fired)
	}
	if got := notifier.Count(monitor.KindEmergencyStop); got != 2 {
		t.Fatalf("expected 2 delivered emergency notifications, got %d", got)
	}
}

func TestConnectionLostOnlyFromConnected(t *testing.T) {
	dispatcher, notifier, cue := newTestDispatcher(t, true)
	ctx := context.Background()
	fetchErr := errors.New("timeout")

	dispatcher.Observe(ctx, detail(1, t0, nominal(t0)))
	state, _ := dispatcher.registry.Get("RS-A")
	if state.Status != monitor.StatusConnected {
		t.Fatalf("expected connected, got %s", state.Status)
	}

	outcome := dispatcher.Observe(ctx, Observation{UnitID: "RS-A", Scope: ScopeDetail, Tick: 2, At: t0.Add(6 * time.Minute), Err: fetchErr})
	if outcome.State.Status != monitor.StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", outcome.State.Status)
	}
	if outcome.State.FetchError == "" || !outcome.State.LastSeenAt.Equal(t0) {
		t.Fatalf("expected fetch error with retained last seen, got %+v", outcome.State)
	}
	if got := notifier.Count(monitor.KindConnectionLost); got != 1 {
		t.Fatalf("expected 1 connection lost, got %d", got)
	}

	dispatcher.Observe(ctx, Observation{UnitID: "RS-A", Scope: ScopeDetail, Tick: 3, At: t0.Add(7 * time.Minute), Err: fetchErr})
	if got := notifier.Count(monitor.KindConnectionLost); got != 1 {
		t.Fatalf("expected no repeat while disconnected, got %d", got)
	}
	if cue.Plays() != 0 {
		t.Fatalf("expected connection lost to be silent, got %d plays", cue.Plays())
	}

	// Reconnect, then degrade before disconnecting: no alert.
	back := t0.Add(8 * time.Minute)
	dispatcher.Observe(ctx, detail(4, back, nominal(back)))
	dispatcher.Observe(ctx, Observation{UnitID: "RS-A", Scope: ScopeDetail, Tick: 5, At: back.Add(3 * time.Minute), Err: fetchErr})
	state, _ = dispatcher.registry.Get("RS-A")
	if state.Status != monitor.StatusDegraded {
		t.Fatalf("expected degraded, got %s", state.Status)
	}
	dispatcher.Observe(ctx, Observation{UnitID: "RS-A", Scope: ScopeDetail, Tick: 6, At: back.Add(6 * time.Minute), Err: fetchErr})
	if got := notifier.Count(monitor.KindConnectionLost); got != 1 {
		t.Fatalf("expected no alert for degraded -> disconnected, got %d", got)
	}
}

func TestLevelTriggeredDangerRefiresEveryObservation(t *testing.T) {
	dispatcher, notifier, cue := newTestDispatcher(t, true)
	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * 10 * time.Second)
		reading := nominal(at)
		reading.Temperature = 95
		dispatcher.Observe(context.Background(), detail(uint64(i+1), at, reading))
	}
	if got := notifier.Count(monitor.KindMetricDanger); got != 3 {
		t.Fatalf("expected 3 level-triggered alerts, got %d", got)
	}
	if cue.Plays() != 3 {
		t.Fatalf("expected one tone per critical alert, got %d", cue.Plays())
	}
}

func TestEdgeTriggeredDangerFiresOncePerEntry(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true, WithDangerAlertMode(DangerAlertEdge))
	temperatures := []float64{95, 96, 70, 92, 93}
	for i, temperature := range temperatures {
		at := t0.Add(time.Duration(i) * 10 * time.Second)
		reading := nominal(at)
		reading.Temperature = temperature
		dispatcher.Observe(context.Background(), detail(uint64(i+1), at, reading))
	}
	if got := notifier.Count(monitor.KindMetricDanger); got != 2 {
		t.Fatalf("expected 2 edge-triggered alerts, got %d", got)
	}
}

func TestOneNotificationPerViolatedMetric(t *testing.T) {
	dispatcher, _, cue := newTestDispatcher(t, true)
	reading := nominal(t0)
	reading.Temperature = 91
	reading.Pressure = 151
	reading.HydraulicOil = 29
	reading.FuelLevel = 19
	reading.EmergencyStop = true
	outcome := dispatcher.Observe(context.Background(), detail(1, t0, reading))
	if len(outcome.Notifications) != 5 {
		t.Fatalf("expected emergency plus 4 metric alerts, got %d", len(outcome.Notifications))
	}
	if cue.Plays() != 5 {
		t.Fatalf("expected 5 tones, got %d", cue.Plays())
	}
	if outcome.State.Severity != monitor.SeverityDanger || len(outcome.State.Violations) != 4 {
		t.Fatalf("unexpected state %+v", outcome.State)
	}
}

func TestDisabledPreferenceSuppressesButTracks(t *testing.T) {
	dispatcher, notifier, cue := newTestDispatcher(t, false)
	ctx := context.Background()

	reading := nominal(t0)
	reading.EmergencyStop = true
	outcome := dispatcher.Observe(ctx, detail(1, t0, reading))
	if len(outcome.Notifications) != 0 || outcome.Suppressed != 1 {
		t.Fatalf("expected suppressed emergency, got %+v", outcome)
	}
	if !outcome.State.Emergency {
		t.Fatalf("expected edge memory to update while disabled")
	}

	if err := dispatcher.EnableNotifications(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	next := t0.Add(10 * time.Second)
	reading = nominal(next)
	reading.EmergencyStop = true
	outcome = dispatcher.Observe(ctx, detail(2, next, reading))
	if len(outcome.Notifications) != 0 {
		t.Fatalf("expected no retroactive emergency after enabling, got %+v", outcome.Notifications)
	}
	kinds := notifier.Kinds()
	if len(kinds) != 1 || kinds[0] != monitor.KindNotificationsEnabled {
		t.Fatalf("expected only the enable confirmation, got %v", kinds)
	}
	if cue.Plays() != 0 {
		t.Fatalf("expected silent confirmation, got %d plays", cue.Plays())
	}
}

func TestEnableDeniedKeepsPreferenceDisabled(t *testing.T) {
	preference := NewPreference(stubPermission{granted: false})
	notifier := &recordingNotifier{}
	dispatcher, err := NewDispatcher(NewRegistry([]string{"RS-A"}), preference, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := dispatcher.EnableNotifications(context.Background()); !errors.Is(err, ErrNotificationsDenied) {
		t.Fatalf("expected ErrNotificationsDenied, got %v", err)
	}
	if preference.Enabled() || len(notifier.Kinds()) != 0 {
		t.Fatalf("expected disabled preference and no confirmation")
	}
}

func TestStaleTickIsDiscarded(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t, true)
	ctx := context.Background()
	newer := nominal(t0.Add(time.Minute))
	newer.Temperature = 75
	dispatcher.Observe(ctx, detail(5, t0.Add(time.Minute), newer))

	older := nominal(t0)
	older.Temperature = 95
	outcome := dispatcher.Observe(ctx, detail(4, t0.Add(2*time.Minute), older))
	if !outcome.Stale {
		t.Fatalf("expected stale outcome")
	}
	state, _ := dispatcher.registry.Get("RS-A")
	if state.Latest == nil || state.Latest.Temperature != 75 || state.AppliedTick != 5 {
		t.Fatalf("expected newer state retained, got %+v", state)
	}
}

func TestOutOfOrderSampleIsNotApplied(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true)
	ctx := context.Background()
	dispatcher.Observe(ctx, detail(1, t0.Add(time.Minute), nominal(t0.Add(time.Minute))))

	old := nominal(t0)
	old.EmergencyStop = true
	outcome := dispatcher.Observe(ctx, detail(2, t0.Add(time.Minute), old))
	if len(outcome.Notifications) != 0 || notifier.Count(monitor.KindEmergencyStop) != 0 {
		t.Fatalf("expected out-of-order sample to be ignored")
	}
	if !outcome.State.LastSeenAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected last seen to stay, got %v", outcome.State.LastSeenAt)
	}
}

func TestOverviewDoesNotAlertByDefault(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true)
	reading := nominal(t0)
	reading.EmergencyStop = true
	reading.FuelLevel = 5
	outcome := dispatcher.Observe(context.Background(), Observation{UnitID: "RS-B", Scope: ScopeOverview, Tick: 1, At: t0, Readings: []monitor.Reading{reading}})
	if len(notifier.Kinds()) != 0 {
		t.Fatalf("expected no alerts from overview, got %v", notifier.Kinds())
	}
	if outcome.State.Severity != monitor.SeverityDanger || outcome.State.Status != monitor.StatusConnected {
		t.Fatalf("expected overview to still update state, got %+v", outcome.State)
	}
	if outcome.State.Emergency {
		t.Fatalf("expected overview to leave edge memory alone")
	}
}

func TestAlertAllUnitsUsesOverview(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true, WithAlertAllUnits(true))
	reading := nominal(t0)
	reading.EmergencyStop = true
	ctx := context.Background()
	dispatcher.Observe(ctx, Observation{UnitID: "RS-B", Scope: ScopeOverview, Tick: 1, At: t0, Readings: []monitor.Reading{reading}})
	dispatcher.Observe(ctx, Observation{UnitID: "RS-B", Scope: ScopeDetail, Tick: 1, At: t0, Readings: []monitor.Reading{reading}})
	if got := notifier.Count(monitor.KindEmergencyStop); got != 1 {
		t.Fatalf("expected exactly one emergency alert, got %d", got)
	}
}

func TestDetailKeepsBoundedHistory(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t, true, WithHistoryLimit(3))
	var readings []monitor.Reading
	for i := 0; i < 5; i++ {
		readings = append(readings, nominal(t0.Add(time.Duration(i)*time.Second)))
	}
	outcome := dispatcher.Observe(context.Background(), detail(1, t0.Add(5*time.Second), readings...))
	if len(outcome.State.History) != 3 || !outcome.State.History[0].Timestamp.Equal(t0.Add(2*time.Second)) {
		t.Fatalf("expected last 3 readings, got %+v", outcome.State.History)
	}
}

func TestReadingWithoutTimestampIsEvaluated(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true)
	reading := nominal(time.Time{})
	reading.Pressure = 160
	outcome := dispatcher.Observe(context.Background(), detail(1, t0, reading))
	if outcome.State.Status != monitor.StatusUnknown {
		t.Fatalf("expected unknown liveness without timestamps, got %s", outcome.State.Status)
	}
	if notifier.Count(monitor.KindMetricDanger) != 1 {
		t.Fatalf("expected pressure alert")
	}
}

func TestOverviewReleaseRearmsEmergencyEdge(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true)
	ctx := context.Background()
	observe := func(tick uint64, scope Scope, active bool) {
		at := t0.Add(time.Duration(tick) * 10 * time.Second)
		reading := nominal(at)
		reading.EmergencyStop = active
		dispatcher.Observe(ctx, Observation{UnitID: "RS-A", Scope: scope, Tick: tick, At: at, Readings: []monitor.Reading{reading}})
	}

	observe(1, ScopeDetail, true)
	observe(2, ScopeOverview, false)
	observe(3, ScopeOverview, true)
	if got := notifier.Count(monitor.KindEmergencyStop); got != 1 {
		t.Fatalf("expected overview not to alert, got %d emergency alerts", got)
	}
	observe(4, ScopeDetail, true)
	if got := notifier.Count(monitor.KindEmergencyStop); got != 2 {
		t.Fatalf("expected the observed release to re-arm the edge, got %d emergency alerts", got)
	}

	observe(5, ScopeOverview, true)
	observe(6, ScopeDetail, true)
	if got := notifier.Count(monitor.KindEmergencyStop); got != 2 {
		t.Fatalf("expected an active overview reading to keep the edge consumed, got %d", got)
	}
}

func TestOverviewReleaseRearmsEdgeTriggeredDanger(t *testing.T) {
	dispatcher, notifier, _ := newTestDispatcher(t, true, WithDangerAlertMode(DangerAlertEdge))
	ctx := context.Background()
	observe := func(tick uint64, scope Scope, temperature float64) {
		at := t0.Add(time.Duration(tick) * 10 * time.Second)
		reading := nominal(at)
		reading.Temperature = temperature
		dispatcher.Observe(ctx, Observation{UnitID: "RS-A", Scope: scope, Tick: tick, At: at, Readings: []monitor.Reading{reading}})
	}

	observe(1, ScopeDetail, 95)
	observe(2, ScopeOverview, 70)
	observe(3, ScopeDetail, 95)
	if got := notifier.Count(monitor.KindMetricDanger); got != 2 {
		t.Fatalf("expected re-entry after an observed release to alert, got %d", got)
	}
}
