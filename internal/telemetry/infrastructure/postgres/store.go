package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reachstacker-monitor/internal/telemetry/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS units (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS readings (
	id BIGSERIAL PRIMARY KEY,
	unit_id TEXT NOT NULL REFERENCES units(id),
	recorded_at TIMESTAMPTZ NOT NULL,
	temperature DOUBLE PRECISION,
	pressure DOUBLE PRECISION,
	hydraulic_oil DOUBLE PRECISION,
	fuel_level DOUBLE PRECISION,
	engine_rpm DOUBLE PRECISION,
	emergency_stop DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS readings_unit_id_idx ON readings (unit_id, id);`

// Store is a Postgres-backed reading log.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("telemetry store: nil db")
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// EnsureUnit provisions a unit row.
func (s *Store) EnsureUnit(ctx context.Context, unitID string) error {
	if s == nil || s.db == nil {
		return errors.New("telemetry store: nil db")
	}
	if unitID == "" {
		return telemetry.ErrEmptyUnitID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO units (id, created_at) VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING`, unitID, time.Now().UTC())
	return err
}

// Append inserts a reading row.
func (s *Store) Append(ctx context.Context, record telemetry.Record) error {
	if s == nil || s.db == nil {
		return errors.New("telemetry store: nil db")
	}
	if record.UnitID == "" {
		return telemetry.ErrEmptyUnitID
	}
	if err := s.EnsureUnit(ctx, record.UnitID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO readings (
	unit_id, recorded_at, temperature, pressure, hydraulic_oil,
	fuel_level, engine_rpm, emergency_stop
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8
)`,
		record.UnitID,
		record.Timestamp.UTC(),
		nullFloat(record.Temperature),
		nullFloat(record.Pressure),
		nullFloat(record.HydraulicOil),
		nullFloat(record.FuelLevel),
		nullFloat(record.EngineRPM),
		nullFloat(record.EmergencyStop),
	)
	return err
}

// Latest returns up to limit trailing readings in insertion order.
func (s *Store) Latest(ctx context.Context, unitID string, limit int) ([]telemetry.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("telemetry store: nil db")
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM units WHERE id = $1)`, unitID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, telemetry.ErrUnknownUnit
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT unit_id, recorded_at, temperature, pressure, hydraulic_oil, fuel_level, engine_rpm, emergency_stop
FROM (
	SELECT id, unit_id, recorded_at, temperature, pressure, hydraulic_oil, fuel_level, engine_rpm, emergency_stop
	FROM readings
	WHERE unit_id = $1
	ORDER BY id DESC
	LIMIT $2
) latest
ORDER BY id ASC`, unitID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]telemetry.Record, 0, limit)
	for rows.Next() {
		var (
			record                                      telemetry.Record
			temperature, pressure, oil, fuel, rpm, stop sql.NullFloat64
		)
		if err := rows.Scan(&record.UnitID, &record.Timestamp, &temperature, &pressure, &oil, &fuel, &rpm, &stop); err != nil {
			return nil, err
		}
		record.Timestamp = record.Timestamp.UTC()
		record.Temperature = floatPtr(temperature)
		record.Pressure = floatPtr(pressure)
		record.HydraulicOil = floatPtr(oil)
		record.FuelLevel = floatPtr(fuel)
		record.EngineRPM = floatPtr(rpm)
		record.EmergencyStop = floatPtr(stop)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Units lists provisioned units by creation time.
func (s *Store) Units(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("telemetry store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM units ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		units = append(units, id)
	}
	return units, rows.Err()
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
