package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
)

func insertEntry(t *testing.T, s *MemoryEntryStore, e models.RoomEntry) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx EntryTx) error {
		var err error
		id, err = tx.Insert(context.Background(), &e)
		return err
	})
	require.NoError(t, err)
	return id
}

func TestMemoryEntryStore_OneActivePerMonitor(t *testing.T) {
	s := NewMemoryEntryStore()
	at := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	id := insertEntry(t, s, models.RoomEntry{MonitorID: 1, RoomID: 7, EntryTime: at, Active: true})
	assert.Equal(t, int64(1), id)

	err := s.WithTx(context.Background(), func(tx EntryTx) error {
		_, err := tx.Insert(context.Background(), &models.RoomEntry{MonitorID: 1, RoomID: 9, EntryTime: at, Active: true})
		return err
	})
	assert.ErrorIs(t, err, models.ErrStorageConflict)
	assert.Equal(t, 1, s.Count())

	open, err := s.FindOpen(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, int64(7), open.RoomID)
}

func TestMemoryEntryStore_RollbackUndoesWrites(t *testing.T) {
	s := NewMemoryEntryStore()
	at := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	id := insertEntry(t, s, models.RoomEntry{MonitorID: 1, RoomID: 7, EntryTime: at, Active: true})

	boom := errors.New("boom")
	err := s.WithTx(context.Background(), func(tx EntryTx) error {
		if _, err := tx.UpdateExit(context.Background(), id, at.Add(time.Hour), ExitUpdate{UpdatedAt: at.Add(time.Hour)}); err != nil {
			return err
		}
		if _, err := tx.Insert(context.Background(), &models.RoomEntry{MonitorID: 2, RoomID: 7, EntryTime: at, Active: true}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, s.Count())
	e, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, e.Active)
	assert.Nil(t, e.ExitTime)

	// ids are reused after rollback like a fresh sequence
	next := insertEntry(t, s, models.RoomEntry{MonitorID: 2, RoomID: 7, EntryTime: at, Active: true})
	assert.Equal(t, int64(2), next)
}

func TestMemoryEntryStore_UpdateExitRules(t *testing.T) {
	s := NewMemoryEntryStore()
	at := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	id := insertEntry(t, s, models.RoomEntry{MonitorID: 3, RoomID: 7, EntryTime: at, Active: true})

	update := func(exit time.Time) error {
		return s.WithTx(context.Background(), func(tx EntryTx) error {
			_, err := tx.UpdateExit(context.Background(), id, exit, ExitUpdate{UpdatedAt: exit})
			return err
		})
	}

	assert.ErrorIs(t, update(at), models.ErrInvalidExit)
	assert.ErrorIs(t, update(at.Add(-time.Minute)), models.ErrInvalidExit)
	require.NoError(t, update(at.Add(time.Minute)))
	assert.ErrorIs(t, update(at.Add(time.Hour)), models.ErrAlreadyClosed)

	e, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, e.ExitTime.Equal(at.Add(time.Minute)), "exit_time is write-once")

	_, err = s.Get(context.Background(), 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryEntryStore_ScanOrderAndCursor(t *testing.T) {
	s := NewMemoryEntryStore()
	base := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertEntry(t, s, models.RoomEntry{MonitorID: int64(i + 1), RoomID: 7, EntryTime: base.Add(time.Duration(i) * time.Hour), Active: true})
	}
	// same entry_time as id 5, ordered by id desc
	insertEntry(t, s, models.RoomEntry{MonitorID: 10, RoomID: 8, EntryTime: base.Add(4 * time.Hour), Active: true})

	page, next, err := s.ScanPage(context.Background(), models.EntryFilter{}, nil, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, []int64{6, 5, 4, 3}, []int64{page[0].ID, page[1].ID, page[2].ID, page[3].ID})
	require.NotNil(t, next)

	page, next, err = s.ScanPage(context.Background(), models.EntryFilter{}, next, 4)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].ID)
	assert.Nil(t, next)

	room := int64(8)
	all, err := CollectAll(context.Background(), s, models.EntryFilter{RoomID: &room})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(10), all[0].MonitorID)
}

func TestScanAll_StopEarly(t *testing.T) {
	s := NewMemoryEntryStore()
	base := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		insertEntry(t, s, models.RoomEntry{MonitorID: int64(i + 1), RoomID: 7, EntryTime: base.Add(time.Duration(i) * time.Minute), Active: true})
	}

	seen := 0
	err := ScanAll(context.Background(), s, models.EntryFilter{}, 1, func(models.RoomEntry) error {
		seen++
		if seen == 2 {
			return ErrStopScan
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}

func TestMemoryEntryStore_CancelledContext(t *testing.T) {
	s := NewMemoryEntryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WithTx(ctx, func(tx EntryTx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.FindOpen(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryAlertStore(t *testing.T) {
	entries := NewMemoryEntryStore()
	at := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	entryID := insertEntry(t, entries, models.RoomEntry{MonitorID: 2, RoomID: 7, EntryTime: at, Active: true})
	alerts := NewMemoryAlertStore(entries)
	ctx := context.Background()

	first := &models.Alert{EntryID: entryID, RecipientID: 99, Kind: models.AlertStillOpenOverThreshold, DurationHoursAtDetection: 9, CreatedAt: at.Add(9 * time.Hour)}
	res, err := alerts.Append(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.AppendInserted, res)
	assert.Equal(t, int64(2), first.MonitorID)

	res, err = alerts.Append(ctx, &models.Alert{EntryID: entryID, RecipientID: 99, Kind: models.AlertStillOpenOverThreshold, DurationHoursAtDetection: 10})
	require.NoError(t, err)
	assert.Equal(t, models.AppendDuplicate, res)

	second := &models.Alert{EntryID: entryID, RecipientID: 99, Kind: models.AlertThresholdCrossed, DurationHoursAtDetection: 11, CreatedAt: at.Add(11 * time.Hour)}
	res, err = alerts.Append(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, models.AppendInserted, res)

	_, err = alerts.Append(ctx, &models.Alert{EntryID: 404, RecipientID: 99, Kind: models.AlertThresholdCrossed})
	assert.ErrorIs(t, err, models.ErrNotFound)

	list, err := alerts.ListFor(ctx, 99, models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.AlertThresholdCrossed, list[0].Kind, "newest first")
	assert.Equal(t, 9.0, list[1].DurationHoursAtDetection, "first detection value is kept")

	require.NoError(t, alerts.MarkRead(ctx, second.ID, 99, at.Add(12*time.Hour)))
	assert.ErrorIs(t, alerts.MarkRead(ctx, second.ID, 98, at), models.ErrNotFound)

	unread, err := alerts.ListFor(ctx, 99, models.AlertFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, first.ID, unread[0].ID)

	summary, err := alerts.Summary(ctx, models.AlertSummaryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Unread)
	assert.Equal(t, map[int64]int{2: 2}, summary.PerMonitorCount)

	paged, err := alerts.ListFor(ctx, 99, models.AlertFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, first.ID, paged[0].ID)
}

func TestMemoryDirectory(t *testing.T) {
	d := NewMemoryDirectory()
	d.AddMonitor(models.Monitor{ID: 1, DisplayName: "Ana", Role: models.RoleMonitor})
	d.AddMonitor(models.Monitor{ID: 99, DisplayName: "Admin", Role: models.RoleAdmin})
	d.AddMonitor(models.Monitor{ID: 98, DisplayName: "Admin 2", Role: models.RoleAdmin})
	d.AddRoom(models.Room{ID: 7, Name: "Sala 7"})
	ctx := context.Background()

	ok, _ := d.MonitorExists(ctx, 1)
	assert.True(t, ok)
	ok, _ = d.MonitorExists(ctx, 2)
	assert.False(t, ok)
	ok, _ = d.RoomExists(ctx, 7)
	assert.True(t, ok)
	ok, _ = d.IsAdmin(ctx, 1)
	assert.False(t, ok)

	ids, err := d.AdminIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{98, 99}, ids)

	monitors, err := d.ListMonitors(ctx, []int64{99, 5, 1})
	require.NoError(t, err)
	require.Len(t, monitors, 2)
	assert.Equal(t, int64(1), monitors[0].ID)
}
