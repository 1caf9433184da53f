package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
)

// DefaultPageSize page size used by ScanAll when none is given.
const DefaultPageSize = 200

// ErrStopScan stops ScanAll early without reporting an error.
var ErrStopScan = errors.New("stop scan")

// EntryReader read side of the entry store.
type EntryReader interface {
	// Get returns models.ErrNotFound when no entry has the id.
	Get(ctx context.Context, id int64) (*models.RoomEntry, error)
	// FindOpen returns nil, nil when the monitor has no active entry.
	FindOpen(ctx context.Context, monitorID int64) (*models.RoomEntry, error)
	// ScanPage returns up to limit entries after the cursor ordered by
	// (entry_time, id) descending, plus the cursor of the next page (nil at the end).
	ScanPage(ctx context.Context, filter models.EntryFilter, after *models.EntryCursor, limit int) ([]models.RoomEntry, *models.EntryCursor, error)
}

// ExitUpdate extra columns written together with exit_time.
type ExitUpdate struct {
	Notes     *string
	ClosedBy  *int64
	UpdatedAt time.Time
}

// EntryTx entry operations bound to one transaction. Get and FindOpen lock the rows they return.
type EntryTx interface {
	EntryReader
	// Insert fails with models.ErrStorageConflict when the monitor already has an active entry.
	Insert(ctx context.Context, entry *models.RoomEntry) (int64, error)
	// UpdateExit fails with models.ErrAlreadyClosed or models.ErrInvalidExit.
	UpdateExit(ctx context.Context, id int64, exitTime time.Time, upd ExitUpdate) (*models.RoomEntry, error)
}

// EntryStore persistent room entries. WithTx commits when fn returns nil and rolls back otherwise.
type EntryStore interface {
	EntryReader
	WithTx(ctx context.Context, fn func(tx EntryTx) error) error
}

// AlertStore the notification sink.
type AlertStore interface {
	// Append stores the alert and sets its ID, or reports AppendDuplicate.
	Append(ctx context.Context, alert *models.Alert) (models.AppendResult, error)
	ListFor(ctx context.Context, recipientID int64, filter models.AlertFilter) ([]models.Alert, error)
	// MarkRead returns models.ErrNotFound unless the alert belongs to the recipient.
	MarkRead(ctx context.Context, alertID, recipientID int64, at time.Time) error
	Summary(ctx context.Context, filter models.AlertSummaryFilter) (*models.AlertSummary, error)
}

// Directory monitors and rooms owned by the surrounding application.
type Directory interface {
	MonitorExists(ctx context.Context, monitorID int64) (bool, error)
	RoomExists(ctx context.Context, roomID int64) (bool, error)
	IsAdmin(ctx context.Context, monitorID int64) (bool, error)
	AdminIDs(ctx context.Context) ([]int64, error)
	ListMonitors(ctx context.Context, ids []int64) ([]models.Monitor, error)
}

// ScanAll walks every entry matching filter page by page, newest first.
// Returning ErrStopScan from fn ends the walk with a nil error.
func ScanAll(ctx context.Context, r EntryReader, filter models.EntryFilter, pageSize int, fn func(models.RoomEntry) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var cursor *models.EntryCursor
	for {
		page, next, err := r.ScanPage(ctx, filter, cursor, pageSize)
		if err != nil {
			return err
		}
		for _, e := range page {
			if err := fn(e); err != nil {
				if errors.Is(err, ErrStopScan) {
					return nil
				}
				return err
			}
		}
		if next == nil {
			return nil
		}
		cursor = next
	}
}

// CollectAll is ScanAll gathering everything into a slice.
func CollectAll(ctx context.Context, r EntryReader, filter models.EntryFilter) ([]models.RoomEntry, error) {
	var out []models.RoomEntry
	err := ScanAll(ctx, r, filter, DefaultPageSize, func(e models.RoomEntry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func nextCursor(page []models.RoomEntry, limit int) *models.EntryCursor {
	if len(page) < limit || len(page) == 0 {
		return nil
	}
	last := page[len(page)-1]
	return &models.EntryCursor{EntryTime: last.EntryTime, ID: last.ID}
}

var (
	_ EntryStore = (*EntryRepository)(nil)
	_ EntryStore = (*MemoryEntryStore)(nil)
	_ AlertStore = (*AlertRepository)(nil)
	_ AlertStore = (*MemoryAlertStore)(nil)
	_ Directory  = (*DirectoryRepository)(nil)
	_ Directory  = (*MemoryDirectory)(nil)
	_ EntryTx    = (*entryTx)(nil)
	_ EntryTx    = (*memoryEntryTx)(nil)
)
