package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
)

func TestTotalsWorkbook(t *testing.T) {
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	w, err := clock.DayWindow("2025-01-10", loc)
	require.NoError(t, err)

	entry := time.Date(2025, 1, 10, 8, 0, 0, 0, loc)
	exit := entry.Add(4*time.Hour + 30*time.Minute)
	admin := int64(99)

	data, err := TotalsWorkbook(TotalsInput{
		Window:   w,
		Location: loc,
		Totals: map[int64]models.MonitorTotal{
			2: {MonitorID: 2},
			1: {MonitorID: 1, Total: 4*time.Hour + 30*time.Minute, EntryCount: 1},
		},
		Monitors: []models.Monitor{{ID: 1, DisplayName: "Ana Torres"}},
		Entries: []models.RoomEntry{
			{ID: 5, MonitorID: 1, RoomID: 7, EntryTime: entry, ExitTime: &exit, ClosedBy: &admin, Notes: "cierre manual"},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{TotalsSheet, EntriesSheet}, f.GetSheetList())

	rows, err := f.GetRows(TotalsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, totalsHeader, rows[0])
	assert.Equal(t, []string{"1", "Ana Torres", "4.5", "1"}, rows[1])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, []string{"Window", "2025-01-10 to 2025-01-10"}, rows[3])

	detail, err := f.GetRows(EntriesSheet)
	require.NoError(t, err)
	require.Len(t, detail, 2)
	assert.Equal(t, []string{"5", "1", "7", "2025-01-10 08:00", "2025-01-10 12:30", "4.5", "99", "cierre manual"}, detail[1])
}

func TestTotalsWorkbook_NoEntriesSheetWhenEmpty(t *testing.T) {
	w := clock.Window{From: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)}

	data, err := TotalsWorkbook(TotalsInput{Window: w, Totals: map[int64]models.MonitorTotal{}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{TotalsSheet}, f.GetSheetList())
}
