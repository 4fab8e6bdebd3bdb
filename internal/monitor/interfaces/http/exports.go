package http

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	monitorapp "reachstacker-monitor/internal/monitor/application"
	monitor "reachstacker-monitor/internal/monitor/domain"
	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

const emptyReadingsSheet = "readings"

// BuildReadingsXLSX renders one sheet per unit with the store's column layout.
func BuildReadingsXLSX(rows map[string][]telemetry.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	units := make([]string, 0, len(rows))
	for unitID := range rows {
		units = append(units, unitID)
	}
	sort.Strings(units)
	if len(units) == 0 {
		units = []string{emptyReadingsSheet}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, unitID := range units {
		if i == 0 {
			f.SetSheetName("Sheet1", unitID)
		} else if _, err := f.NewSheet(unitID); err != nil {
			return nil, fmt.Errorf("export: sheet %s: %w", unitID, err)
		}
		for col, header := range telemetry.Headers {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(unitID, cell, header)
		}
		lastHeader, _ := excelize.CoordinatesToCellName(len(telemetry.Headers), 1)
		_ = f.SetCellStyle(unitID, "A1", lastHeader, style)

		for r, row := range rows[unitID] {
			for col, header := range telemetry.Headers {
				cell, err := excelize.CoordinatesToCellName(col+1, r+2)
				if err != nil {
					return nil, err
				}
				_ = f.SetCellValue(unitID, cell, row[header])
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildFleetPDF renders the dashboard view of every unit alongside the
// store's own connection status.
func BuildFleetPDF(states []monitorapp.UnitState, storeStatus map[string]telemetry.StatusEntry, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Reach Stacker Fleet Status")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Units: %d", len(states)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(24, 6, "Unit", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Liveness", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Last Seen", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Store Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(52, 6, "Violations", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, state := range states {
		lastSeen := "-"
		if !state.LastSeenAt.IsZero() {
			lastSeen = state.LastSeenAt.UTC().Format("2006-01-02 15:04:05")
		}
		storeState := "-"
		if entry, ok := storeStatus[state.UnitID]; ok {
			storeState = entry.Status
		}
		pdf.CellFormat(24, 6, state.UnitID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(26, 6, string(state.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, string(state.Severity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, lastSeen, "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, storeState, "1", 0, "C", false, 0, "")
		pdf.CellFormat(52, 6, violationSummary(state.Violations), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func violationSummary(violations []monitor.Violation) string {
	if len(violations) == 0 {
		return "none"
	}
	out := ""
	for i, v := range violations {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%.1f (%s)", v.Metric, v.Value, v.Level)
	}
	return out
}
