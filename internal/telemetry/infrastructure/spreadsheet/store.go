package spreadsheet

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"reachstacker-monitor/internal/telemetry/domain"
)

// DefaultTemplateSheet is cloned for every newly provisioned unit when present.
const DefaultTemplateSheet = "Sheet1"

const headerFill = "4285F4"

// Store keeps one sheet per unit in an XLSX workbook. Every append is saved to
// disk when the store is backed by a path.
type Store struct {
	mu       sync.Mutex
	path     string
	template string
	file     *excelize.File
	nextRow  map[string]int
}

// Option customizes the store.
type Option func(*Store)

// WithTemplateSheet overrides the sheet cloned for new units.
func WithTemplateSheet(name string) Option {
	return func(s *Store) {
		s.template = name
	}
}

// Open loads the workbook at path, creating it when missing. An empty path keeps
// the workbook in memory only.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:     path,
		template: DefaultTemplateSheet,
		nextRow:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			file, err := excelize.OpenFile(path)
			if err != nil {
				return nil, err
			}
			s.file = file
			return s, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	s.file = excelize.NewFile()
	if path != "" {
		if err := s.file.SaveAs(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the workbook.
func (s *Store) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// EnsureUnit provisions the unit sheet with its header row.
func (s *Store) EnsureUnit(ctx context.Context, unitID string) error {
	_ = ctx
	if unitID == "" {
		return telemetry.ErrEmptyUnitID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created, err := s.ensureSheetLocked(unitID)
	if err != nil {
		return err
	}
	if created {
		return s.saveLocked()
	}
	return nil
}

// Append writes the record as the next row of its unit sheet.
func (s *Store) Append(ctx context.Context, record telemetry.Record) error {
	_ = ctx
	if record.UnitID == "" {
		return telemetry.ErrEmptyUnitID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ensureSheetLocked(record.UnitID); err != nil {
		return err
	}
	row, err := s.nextRowLocked(record.UnitID)
	if err != nil {
		return err
	}
	for i, value := range record.Cells() {
		if value == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		switch v := value.(type) {
		case float64:
			err = s.file.SetCellFloat(record.UnitID, cell, v, -1, 64)
		case string:
			err = s.file.SetCellStr(record.UnitID, cell, v)
		default:
			err = s.file.SetCellValue(record.UnitID, cell, v)
		}
		if err != nil {
			return err
		}
	}
	s.nextRow[record.UnitID] = row + 1
	return s.saveLocked()
}

// Latest returns up to limit trailing rows of the unit sheet.
func (s *Store) Latest(ctx context.Context, unitID string, limit int) ([]telemetry.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasSheetLocked(unitID) {
		return nil, telemetry.ErrUnknownUnit
	}
	rows, err := s.file.GetRows(unitID, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return []telemetry.Record{}, nil
	}
	header := rows[0]
	data := rows[1:]
	if limit > 0 && len(data) > limit {
		data = data[len(data)-limit:]
	}
	records := make([]telemetry.Record, 0, len(data))
	for _, cells := range data {
		records = append(records, telemetry.RecordFromCells(header, cells))
	}
	return records, nil
}

// Units lists unit sheets in workbook order, excluding the template sheet.
func (s *Store) Units(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var units []string
	for _, name := range s.file.GetSheetList() {
		if name == s.template {
			continue
		}
		units = append(units, name)
	}
	return units, nil
}

func (s *Store) hasSheetLocked(name string) bool {
	if name == "" || name == s.template {
		return false
	}
	idx, err := s.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (s *Store) ensureSheetLocked(unitID string) (bool, error) {
	if s.hasSheetLocked(unitID) {
		return false, nil
	}
	idx, err := s.file.NewSheet(unitID)
	if err != nil {
		return false, err
	}
	if tplIdx, err := s.file.GetSheetIndex(s.template); err == nil && tplIdx >= 0 {
		if err := s.file.CopySheet(tplIdx, idx); err != nil {
			return false, err
		}
	}

	header := make([]any, 0, len(telemetry.Headers))
	for _, name := range telemetry.Headers {
		header = append(header, name)
	}
	if err := s.file.SetSheetRow(unitID, "A1", &header); err != nil {
		return false, err
	}
	lastCell, err := excelize.CoordinatesToCellName(len(telemetry.Headers), 1)
	if err != nil {
		return false, err
	}
	style, err := s.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	})
	if err != nil {
		return false, err
	}
	if err := s.file.SetCellStyle(unitID, "A1", lastCell, style); err != nil {
		return false, err
	}
	if err := s.file.SetPanes(unitID, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return false, err
	}
	s.nextRow[unitID] = 2
	return true, nil
}

func (s *Store) nextRowLocked(unitID string) (int, error) {
	if row, ok := s.nextRow[unitID]; ok {
		return row, nil
	}
	rows, err := s.file.GetRows(unitID)
	if err != nil {
		return 0, err
	}
	row := len(rows) + 1
	if row < 2 {
		row = 2
	}
	s.nextRow[unitID] = row
	return row, nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	return s.file.Save()
}
