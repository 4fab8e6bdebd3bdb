package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

type fakeFetcher struct {
	mu    sync.Mutex
	rows  map[string][]telemetry.Row
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		rows:  make(map[string][]telemetry.Row),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Unit(_ context.Context, unitID string) ([]telemetry.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[unitID]++
	if err := f.errs[unitID]; err != nil {
		return nil, err
	}
	return f.rows[unitID], nil
}

func (f *fakeFetcher) Calls(unitID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[unitID]
}

func row(at time.Time, temperature float64) telemetry.Row {
	return telemetry.Row{
		telemetry.HeaderTimestamp:     at.UTC().Format(telemetry.TimestampLayout),
		telemetry.HeaderTemperature:   temperature,
		telemetry.HeaderPressure:      100.0,
		telemetry.HeaderHydraulicOil:  60.0,
		telemetry.HeaderFuelLevel:     60.0,
		telemetry.HeaderEngineRPM:     1500.0,
		telemetry.HeaderEmergencyStop: 0.0,
	}
}

func TestPollerTicksImmediatelyAndIsolatesFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	now := time.Now().UTC()
	fetcher.rows["RS-A"] = []telemetry.Row{row(now, 72)}
	fetcher.errs["RS-B"] = errors.New("connection refused")

	targets := func() []Target {
		return []Target{{UnitID: "RS-A", Scope: ScopeDetail}, {UnitID: "RS-B", Scope: ScopeOverview}}
	}
	poller, err := NewPoller(fetcher, targets, WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Observation, 4)
	done := make(chan struct{})
	go func() {
		poller.Run(ctx, out)
		close(done)
	}()

	got := map[string]Observation{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case obs := <-out:
			got[obs.UnitID] = obs
		case <-deadline:
			t.Fatalf("timeout waiting for first tick, got %v", got)
		}
	}
	cancel()
	<-done

	if got["RS-A"].Err != nil || len(got["RS-A"].Readings) != 1 || got["RS-A"].Tick != 1 {
		t.Fatalf("unexpected RS-A observation %+v", got["RS-A"])
	}
	if got["RS-B"].Err == nil || got["RS-B"].Tick != 1 {
		t.Fatalf("expected RS-B failure on tick 1, got %+v", got["RS-B"])
	}
}

func TestSessionAppliesObservationsAndSelects(t *testing.T) {
	fetcher := newFakeFetcher()
	now := time.Now().UTC()
	fetcher.rows["RS-A"] = []telemetry.Row{row(now, 72)}
	fetcher.rows["RS-B"] = []telemetry.Row{row(now.Add(-10*time.Minute), 95)}

	registry := NewRegistry([]string{"RS-A", "RS-B"})
	notifier := &recordingNotifier{}
	preference := NewPreference(nil)
	if err := preference.Enable(context.Background()); err != nil {
		t.Fatalf("enable: %v", err)
	}
	dispatcher, err := NewDispatcher(registry, preference, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	session, err := NewSession(fetcher, dispatcher, registry, "", nil, WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if session.Selected() != "RS-A" {
		t.Fatalf("expected first unit selected, got %s", session.Selected())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, func() bool {
		a, _ := registry.Get("RS-A")
		b, _ := registry.Get("RS-B")
		return a.Status == "connected" && b.Status == "disconnected"
	})

	if err := session.Select("RS-Z"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
	if err := session.Select("RS-B"); err != nil {
		t.Fatalf("select: %v", err)
	}
	waitFor(t, func() bool {
		return notifier.Count("metric_danger") >= 1
	})
	if session.Selected() != "RS-B" {
		t.Fatalf("expected RS-B selected")
	}
	if fetcher.Calls("RS-B") < 2 {
		t.Fatalf("expected triggered refresh to fetch RS-B again, got %d calls", fetcher.Calls("RS-B"))
	}
}

func TestNewSessionRejectsUnknownSelection(t *testing.T) {
	registry := NewRegistry([]string{"RS-A"})
	dispatcher, err := NewDispatcher(registry, NewPreference(nil))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if _, err := NewSession(newFakeFetcher(), dispatcher, registry, "RS-X", nil); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
