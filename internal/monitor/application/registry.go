package application

import (
	"sort"
	"sync"
	"time"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

// UnitState is everything the session tracks for one unit.
type UnitState struct {
	UnitID     string              `json:"unitId"`
	Status     monitor.Status      `json:"status"`
	LastSeenAt time.Time           `json:"lastSeenAt,omitempty"`
	Severity   monitor.Severity    `json:"severity"`
	Violations []monitor.Violation `json:"violations"`
	Latest     *monitor.Reading    `json:"latest,omitempty"`
	History    []monitor.Reading   `json:"history,omitempty"`
	FetchError string              `json:"fetchError,omitempty"`
	UpdatedAt  time.Time           `json:"updatedAt,omitempty"`

	// Edge memory for emergency and danger-band alerts.
	Emergency     bool                    `json:"emergency"`
	DangerMetrics map[monitor.Metric]bool `json:"-"`
	// AppliedTick is the newest poll tick folded into this state.
	AppliedTick uint64 `json:"-"`
}

func newUnitState(unitID string) UnitState {
	return UnitState{
		UnitID:     unitID,
		Status:     monitor.StatusUnknown,
		Severity:   monitor.SeverityNormal,
		Violations: []monitor.Violation{},
	}
}

func (s UnitState) clone() UnitState {
	out := s
	if s.Latest != nil {
		latest := *s.Latest
		out.Latest = &latest
	}
	out.Violations = append([]monitor.Violation{}, s.Violations...)
	out.History = append([]monitor.Reading(nil), s.History...)
	if s.DangerMetrics != nil {
		out.DangerMetrics = make(map[monitor.Metric]bool, len(s.DangerMetrics))
		for metric, active := range s.DangerMetrics {
			out.DangerMetrics[metric] = active
		}
	}
	return out
}

// Registry is the session-scoped keyed store of unit states.
type Registry struct {
	mu    sync.RWMutex
	units map[string]UnitState
}

// NewRegistry registers the known units in the unknown state.
func NewRegistry(unitIDs []string) *Registry {
	r := &Registry{units: make(map[string]UnitState, len(unitIDs))}
	for _, unitID := range unitIDs {
		if unitID == "" {
			continue
		}
		r.units[unitID] = newUnitState(unitID)
	}
	return r
}

// Known reports whether the unit is registered.
func (r *Registry) Known(unitID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.units[unitID]
	return ok
}

// Get returns a copy of the unit state.
func (r *Registry) Get(unitID string) (UnitState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.units[unitID]
	if !ok {
		return UnitState{}, false
	}
	return state.clone(), true
}

// Upsert stores a copy of the state.
func (r *Registry) Upsert(state UnitState) {
	if state.UnitID == "" {
		return
	}
	r.mu.Lock()
	r.units[state.UnitID] = state.clone()
	r.mu.Unlock()
}

// Units lists registered unit ids in order.
func (r *Registry) Units() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.units))
	for unitID := range r.units {
		ids = append(ids, unitID)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Snapshot returns copies of all unit states ordered by unit id.
func (r *Registry) Snapshot() []UnitState {
	r.mu.RLock()
	states := make([]UnitState, 0, len(r.units))
	for _, state := range r.units {
		states = append(states, state.clone())
	}
	r.mu.RUnlock()
	sort.Slice(states, func(i, j int) bool {
		return states[i].UnitID < states[j].UnitID
	})
	return states
}
