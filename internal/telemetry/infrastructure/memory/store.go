package memory

import (
	"context"
	"sync"

	"reachstacker-monitor/internal/telemetry/domain"
)

// Store is an in-memory reading log for demo/testing.
type Store struct {
	mu    sync.RWMutex
	order []string
	logs  map[string][]telemetry.Record
}

// NewStore constructs a store.
func NewStore() *Store {
	return &Store{logs: make(map[string][]telemetry.Record)}
}

// EnsureUnit provisions an empty log for the unit.
func (s *Store) EnsureUnit(ctx context.Context, unitID string) error {
	_ = ctx
	if unitID == "" {
		return telemetry.ErrEmptyUnitID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(unitID)
	return nil
}

// Append adds a record to the unit log.
func (s *Store) Append(ctx context.Context, record telemetry.Record) error {
	_ = ctx
	if record.UnitID == "" {
		return telemetry.ErrEmptyUnitID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(record.UnitID)
	s.logs[record.UnitID] = append(s.logs[record.UnitID], record)
	return nil
}

// Latest returns up to limit trailing records.
func (s *Store) Latest(ctx context.Context, unitID string, limit int) ([]telemetry.Record, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[unitID]
	if !ok {
		return nil, telemetry.ErrUnknownUnit
	}
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	return append([]telemetry.Record(nil), log...), nil
}

// Units lists provisioned units in creation order.
func (s *Store) Units(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) ensureLocked(unitID string) {
	if _, ok := s.logs[unitID]; ok {
		return
	}
	s.logs[unitID] = nil
	s.order = append(s.order, unitID)
}
