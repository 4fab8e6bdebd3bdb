package application

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"reachstacker-monitor/internal/observability/metrics"
	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

const (
	defaultRecordLimit       = 100
	defaultUnitPrefix        = "RS-"
	defaultWarningAfter      = time.Minute
	defaultDisconnectedAfter = 5 * time.Minute
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service implements the store read/write contract over a telemetry.Store.
type Service struct {
	store             telemetry.Store
	clock             Clock
	logger            *log.Logger
	limit             int
	prefix            string
	warningAfter      time.Duration
	disconnectedAfter time.Duration
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRecordLimit caps the records returned per unit.
func WithRecordLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithUnitPrefix sets the prefix that marks a log as a unit for ?id=all.
func WithUnitPrefix(prefix string) ServiceOption {
	return func(s *Service) {
		s.prefix = prefix
	}
}

// WithStatusThresholds sets the server-side liveness thresholds.
func WithStatusThresholds(warningAfter, disconnectedAfter time.Duration) ServiceOption {
	return func(s *Service) {
		if warningAfter > 0 {
			s.warningAfter = warningAfter
		}
		if disconnectedAfter > 0 {
			s.disconnectedAfter = disconnectedAfter
		}
	}
}

// NewService constructs a store service.
func NewService(store telemetry.Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("telemetry: nil store")
	}
	service := &Service{
		store:             store,
		clock:             systemClock{},
		limit:             defaultRecordLimit,
		prefix:            defaultUnitPrefix,
		warningAfter:      defaultWarningAfter,
		disconnectedAfter: defaultDisconnectedAfter,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.warningAfter >= service.disconnectedAfter {
		return nil, errors.New("telemetry: warning threshold must be below disconnected threshold")
	}
	return service, nil
}

// Seed provisions the given units.
func (s *Service) Seed(ctx context.Context, unitIDs []string) error {
	for _, unitID := range unitIDs {
		unitID = strings.TrimSpace(unitID)
		if unitID == "" {
			continue
		}
		if err := s.store.EnsureUnit(ctx, unitID); err != nil {
			return err
		}
		s.logf("telemetry: unit provisioned unit=%s", unitID)
	}
	return nil
}

// Append stamps the record with the server time and appends it to its unit log.
func (s *Service) Append(ctx context.Context, record telemetry.Record) (telemetry.Record, error) {
	record.UnitID = strings.TrimSpace(record.UnitID)
	if record.UnitID == "" {
		record.UnitID = telemetry.DefaultUnitID
	}
	record.Timestamp = s.clock.Now().UTC().Truncate(time.Millisecond)

	if err := s.store.EnsureUnit(ctx, record.UnitID); err != nil {
		metrics.IncStoreAppend(record.UnitID, metrics.ResultError)
		return telemetry.Record{}, err
	}
	if err := s.store.Append(ctx, record); err != nil {
		metrics.IncStoreAppend(record.UnitID, metrics.ResultError)
		return telemetry.Record{}, err
	}
	metrics.IncStoreAppend(record.UnitID, metrics.ResultSuccess)
	return record, nil
}

// Unit returns the latest records of one unit.
func (s *Service) Unit(ctx context.Context, unitID string) ([]telemetry.Record, error) {
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return nil, telemetry.ErrEmptyUnitID
	}
	return s.store.Latest(ctx, unitID, s.limit)
}

// All returns the latest records of every unit log carrying the unit prefix.
func (s *Service) All(ctx context.Context) (map[string][]telemetry.Record, error) {
	units, err := s.units(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]telemetry.Record, len(units))
	for _, unitID := range units {
		records, err := s.store.Latest(ctx, unitID, s.limit)
		if err != nil {
			return nil, err
		}
		result[unitID] = records
	}
	return result, nil
}

// Status summarizes liveness per unit from the newest record.
func (s *Service) Status(ctx context.Context) (map[string]telemetry.StatusEntry, error) {
	units, err := s.units(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	result := make(map[string]telemetry.StatusEntry, len(units))
	for _, unitID := range units {
		records, err := s.store.Latest(ctx, unitID, 1)
		if err != nil {
			return nil, err
		}
		result[unitID] = s.summarize(now, records)
	}
	return result, nil
}

func (s *Service) summarize(now time.Time, records []telemetry.Record) telemetry.StatusEntry {
	if len(records) == 0 || records[len(records)-1].Timestamp.IsZero() {
		return telemetry.StatusEntry{Status: telemetry.SummaryNoData}
	}
	lastSeen := records[len(records)-1].Timestamp
	age := now.Sub(lastSeen)
	minutes := int(math.Round(age.Minutes()))
	formatted := lastSeen.UTC().Format(telemetry.TimestampLayout)

	status := telemetry.SummaryConnected
	switch {
	case age > s.disconnectedAfter:
		status = telemetry.SummaryDisconnected
	case age > s.warningAfter:
		status = telemetry.SummaryWarning
	}
	return telemetry.StatusEntry{
		Status:     status,
		LastSeen:   &formatted,
		MinutesAgo: &minutes,
	}
}

func (s *Service) units(ctx context.Context) ([]string, error) {
	all, err := s.store.Units(ctx)
	if err != nil {
		return nil, err
	}
	units := make([]string, 0, len(all))
	for _, unitID := range all {
		if strings.HasPrefix(unitID, s.prefix) {
			units = append(units, unitID)
		}
	}
	sort.Strings(units)
	return units, nil
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
