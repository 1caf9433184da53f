// Package presence owns the RoomEntry lifecycle: open, close and admin
// force-close. It is the only writer of room_entries.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/events"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/repository"

	"go.uber.org/zap"
)

// Observer is told about entries after their transaction committed.
type Observer interface {
	EntryOpened(ctx context.Context, entry models.RoomEntry)
	EntryClosed(ctx context.Context, entry models.RoomEntry)
}

// OpenFilter list_open filter.
type OpenFilter struct {
	MonitorIDs []int64
	RoomID     *int64
}

// Engine transactional facade over the entry store.
type Engine struct {
	store     repository.EntryStore
	directory repository.Directory
	clock     clock.Clock
	observer  Observer
	publisher events.Publisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewEngine directory, observer and publisher may be nil. timeout <= 0 means no deadline.
func NewEngine(
	store repository.EntryStore,
	directory repository.Directory,
	clk clock.Clock,
	observer Observer,
	publisher events.Publisher,
	timeout time.Duration,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:     store,
		directory: directory,
		clock:     clk,
		observer:  observer,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

// OpenEntry starts a session for the monitor in the room.
func (e *Engine) OpenEntry(ctx context.Context, monitorID, roomID int64, notes string) (*models.RoomEntry, error) {
	opCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := e.checkDirectory(opCtx, monitorID, roomID); err != nil {
		return nil, e.fail(opCtx, "open_entry", monitorID, 0, err)
	}

	var entry models.RoomEntry
	err := e.store.WithTx(opCtx, func(tx repository.EntryTx) error {
		open, err := tx.FindOpen(opCtx, monitorID)
		if err != nil {
			return err
		}
		if open != nil {
			return models.ErrAlreadyInRoom
		}

		now := e.clock.Now()
		entry = models.RoomEntry{
			MonitorID: monitorID,
			RoomID:    roomID,
			EntryTime: now,
			Active:    true,
			Notes:     notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.Insert(opCtx, &entry); err != nil {
			// a concurrent open from another process won the partial unique index
			if errors.Is(err, models.ErrStorageConflict) {
				return models.ErrAlreadyInRoom
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(opCtx, "open_entry", monitorID, 0, err)
	}

	out := entry.In(e.clock.Location())
	e.logger.Info("Room entry opened",
		zap.Int64("entry_id", out.ID),
		zap.Int64("monitor_id", monitorID),
		zap.Int64("room_id", roomID),
		zap.Time("entry_time", out.EntryTime),
	)
	if e.observer != nil {
		e.observer.EntryOpened(ctx, out)
	}
	e.publish(ctx, events.NewEntryEvent(events.EntryOpened, out, out.EntryTime))
	return &out, nil
}

// CloseEntry ends the monitor's active session at the current instant.
// notes replaces the stored notes when non-nil.
func (e *Engine) CloseEntry(ctx context.Context, monitorID int64, notes *string) (*models.RoomEntry, error) {
	opCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	var closed *models.RoomEntry
	var entryID int64
	err := e.store.WithTx(opCtx, func(tx repository.EntryTx) error {
		open, err := tx.FindOpen(opCtx, monitorID)
		if err != nil {
			return err
		}
		if open == nil {
			return models.ErrNoActiveEntry
		}
		entryID = open.ID

		now := e.clock.Now()
		if !now.After(open.EntryTime) {
			return models.ErrClockRegression
		}
		closed, err = tx.UpdateExit(opCtx, open.ID, now, repository.ExitUpdate{
			Notes:     notes,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, e.fail(opCtx, "close_entry", monitorID, entryID, err)
	}

	return e.closed(ctx, *closed, "Room entry closed"), nil
}

// ForceClose closes any active entry on behalf of an admin. The caller checks
// that adminID is an admin. exitTime defaults to now and must fall in (entry_time, now].
func (e *Engine) ForceClose(ctx context.Context, entryID, adminID int64, exitTime *time.Time) (*models.RoomEntry, error) {
	opCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	var closed *models.RoomEntry
	var monitorID int64
	err := e.store.WithTx(opCtx, func(tx repository.EntryTx) error {
		entry, err := tx.Get(opCtx, entryID)
		if err != nil {
			return err
		}
		monitorID = entry.MonitorID
		if !entry.Active {
			return models.ErrAlreadyClosed
		}

		now := e.clock.Now()
		exit := now
		if exitTime != nil {
			exit = *exitTime
			if exit.After(now) {
				return fmt.Errorf("%w: exit time %s is in the future", models.ErrInvalidExit, exit.Format(time.RFC3339))
			}
		}
		if !exit.After(entry.EntryTime) {
			if exitTime == nil {
				return models.ErrClockRegression
			}
			return models.ErrInvalidExit
		}

		notes := appendNote(entry.Notes, fmt.Sprintf("force-closed by admin %d at %s", adminID, now.Format(time.RFC3339)))
		closed, err = tx.UpdateExit(opCtx, entryID, exit, repository.ExitUpdate{
			Notes:     &notes,
			ClosedBy:  &adminID,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, e.fail(opCtx, "force_close", monitorID, entryID, err)
	}

	return e.closed(ctx, *closed, "Room entry force-closed", zap.Int64("admin_id", adminID)), nil
}

// ListOpen returns active entries, newest first.
func (e *Engine) ListOpen(ctx context.Context, filter OpenFilter) ([]models.RoomEntry, error) {
	opCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	active := true
	entries, err := repository.CollectAll(opCtx, e.store, models.EntryFilter{
		MonitorIDs: filter.MonitorIDs,
		RoomID:     filter.RoomID,
		Active:     &active,
	})
	if err != nil {
		return nil, e.fail(opCtx, "list_open", 0, 0, err)
	}

	loc := e.clock.Location()
	for i := range entries {
		entries[i] = entries[i].In(loc)
	}
	return entries, nil
}

func (e *Engine) closed(ctx context.Context, entry models.RoomEntry, msg string, fields ...zap.Field) *models.RoomEntry {
	out := entry.In(e.clock.Location())
	d, _ := out.Duration()
	e.logger.Info(msg, append(fields,
		zap.Int64("entry_id", out.ID),
		zap.Int64("monitor_id", out.MonitorID),
		zap.Int64("room_id", out.RoomID),
		zap.Duration("duration", d),
	)...)

	if e.observer != nil {
		e.observer.EntryClosed(ctx, out)
	}
	e.publish(ctx, events.NewEntryEvent(events.EntryClosed, out, *out.ExitTime))
	return &out
}

func (e *Engine) checkDirectory(ctx context.Context, monitorID, roomID int64) error {
	if e.directory == nil {
		return nil
	}
	ok, err := e.directory.MonitorExists(ctx, monitorID)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrUnknownMonitor
	}
	ok, err = e.directory.RoomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrUnknownRoom
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish presence event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// fail wraps err with the operation context and turns deadline expiry into ErrTimeout.
func (e *Engine) fail(ctx context.Context, op string, monitorID, entryID int64, err error) error {
	if !isDomainError(err) && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		err = fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.Int64("monitor_id", monitorID),
		zap.Int64("entry_id", entryID),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, models.ErrClockRegression), errors.Is(err, models.ErrTimeout):
		e.logger.Error("Presence operation failed", fields...)
	case isDomainError(err):
		e.logger.Debug("Presence operation rejected", fields...)
	default:
		e.logger.Error("Presence operation failed", fields...)
	}

	return &models.EntryError{Op: op, MonitorID: monitorID, EntryID: entryID, Err: err}
}

var domainErrors = []error{
	models.ErrAlreadyInRoom,
	models.ErrNoActiveEntry,
	models.ErrAlreadyClosed,
	models.ErrUnknownMonitor,
	models.ErrUnknownRoom,
	models.ErrNotFound,
	models.ErrInvalidExit,
	models.ErrClockRegression,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
