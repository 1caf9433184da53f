// Package report renders aggregator output as spreadsheets.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	TotalsSheet  = "Monitor Totals"
	EntriesSheet = "Entries"

	timeLayout = "2006-01-02 15:04"
)

var totalsHeader = []string{"Monitor ID", "Monitor", "Total Hours", "Entries"}

var entriesHeader = []string{"Entry ID", "Monitor ID", "Room ID", "Entry Time", "Exit Time", "Hours", "Closed By", "Notes"}

// TotalsInput everything one export needs.
type TotalsInput struct {
	Window   clock.Window
	Location *time.Location
	Totals   map[int64]models.MonitorTotal
	Monitors []models.Monitor
	// Entries optional detail rows; the sheet is skipped when empty.
	Entries []models.RoomEntry
}

// TotalsWorkbook builds an XLSX with per-monitor totals and, optionally, the entry detail.
func TotalsWorkbook(in TotalsInput) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	if _, err := f.NewSheet(TotalsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	// indexes shift once the default sheet is gone
	index, err := f.GetSheetIndex(TotalsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to locate sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	names := make(map[int64]string, len(in.Monitors))
	for _, m := range in.Monitors {
		names[m.ID] = m.DisplayName
	}

	ids := make([]int64, 0, len(in.Totals))
	for id := range in.Totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([][]any, 0, len(ids)+1)
	for _, id := range ids {
		t := in.Totals[id]
		rows = append(rows, []any{id, names[id], t.TotalHours(), t.EntryCount})
	}
	// window footer, dates are inclusive for readers
	rows = append(rows, []any{
		"Window",
		fmt.Sprintf("%s to %s", clock.CivilDate(in.Window.From, loc), clock.CivilDate(in.Window.To.Add(-time.Nanosecond), loc)),
	})
	if err := writeSheet(f, TotalsSheet, totalsHeader, []float64{12, 30, 14, 10}, headerStyle, rows); err != nil {
		return nil, err
	}

	if len(in.Entries) > 0 {
		if _, err := f.NewSheet(EntriesSheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		detail := make([][]any, 0, len(in.Entries))
		for _, e := range in.Entries {
			row := []any{e.ID, e.MonitorID, e.RoomID, e.EntryTime.In(loc).Format(timeLayout), "", "", "", e.Notes}
			if d, ok := e.Duration(); ok {
				row[4] = e.ExitTime.In(loc).Format(timeLayout)
				row[5] = models.RoundHours(d)
			}
			if e.ClosedBy != nil {
				row[6] = *e.ClosedBy
			}
			detail = append(detail, row)
		}
		if err := writeSheet(f, EntriesSheet, entriesHeader, []float64{10, 12, 10, 18, 18, 10, 10, 40}, headerStyle, detail); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, widths []float64, headerStyle int, rows [][]any) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r+2, sheet, err)
		}
	}
	return nil
}
