package spreadsheet

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

func TestStoreProvisionsStyledSheetAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.xlsx")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 9, 15, 0, 250000000, time.UTC)
	record := telemetry.Record{
		Timestamp:     at,
		UnitID:        "RS-01",
		Temperature:   telemetry.Float(91.5),
		Pressure:      telemetry.Float(140),
		HydraulicOil:  telemetry.Float(55),
		FuelLevel:     telemetry.Float(35),
		EngineRPM:     telemetry.Float(1750),
		EmergencyStop: telemetry.Float(1),
	}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen raw: %v", err)
	}
	header, err := file.GetCellValue("RS-01", "C1")
	if err != nil || header != telemetry.HeaderTemperature {
		t.Fatalf("expected temperature header, got %q (%v)", header, err)
	}
	_ = file.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	units, err := reopened.Units(ctx)
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	if len(units) != 1 || units[0] != "RS-01" {
		t.Fatalf("expected only RS-01 (template excluded), got %v", units)
	}

	second := record
	second.Timestamp = at.Add(time.Second)
	second.Temperature = telemetry.Float(70)
	second.HydraulicOil = nil
	if err := reopened.Append(ctx, second); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}

	records, err := reopened.Latest(ctx, "RS-01", 100)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if !first.Timestamp.Equal(at) || *first.Temperature != 91.5 || *first.EmergencyStop != 1 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if records[1].HydraulicOil != nil {
		t.Fatalf("expected empty oil cell on second record")
	}
}

func TestStoreUnknownUnitAndLimit(t *testing.T) {
	store, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Latest(ctx, "RS-02", 10); !errors.Is(err, telemetry.ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
	if _, err := store.Latest(ctx, DefaultTemplateSheet, 10); !errors.Is(err, telemetry.ErrUnknownUnit) {
		t.Fatalf("expected template sheet to be hidden, got %v", err)
	}

	if err := store.EnsureUnit(ctx, "RS-02"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	records, err := store.Latest(ctx, "RS-02", 10)
	if err != nil || len(records) != 0 {
		t.Fatalf("expected no data for header-only sheet, got %v %v", records, err)
	}

	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		record := telemetry.Record{UnitID: "RS-02", Timestamp: base.Add(time.Duration(i) * time.Second), EngineRPM: telemetry.Float(float64(1000 + i))}
		if err := store.Append(ctx, record); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	records, err = store.Latest(ctx, "RS-02", 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(records) != 2 || *records[0].EngineRPM != 1003 || *records[1].EngineRPM != 1004 {
		t.Fatalf("expected trailing two rows, got %+v", records)
	}
}
