package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const entryColumns = `id, monitor_id, room_id, entry_time, exit_time, active, notes, closed_by, created_at, updated_at`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// EntryRepository room_entries on Postgres.
type EntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewEntryRepository(db *sql.DB, logger *zap.Logger) *EntryRepository {
	return &EntryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *EntryRepository) Get(ctx context.Context, id int64) (*models.RoomEntry, error) {
	return getEntry(ctx, r.db, id, false)
}

func (r *EntryRepository) FindOpen(ctx context.Context, monitorID int64) (*models.RoomEntry, error) {
	return findOpenEntry(ctx, r.db, monitorID, false)
}

func (r *EntryRepository) ScanPage(ctx context.Context, filter models.EntryFilter, after *models.EntryCursor, limit int) ([]models.RoomEntry, *models.EntryCursor, error) {
	return scanEntryPage(ctx, r.db, filter, after, limit)
}

// WithTx runs fn inside a read-committed transaction.
func (r *EntryRepository) WithTx(ctx context.Context, fn func(tx EntryTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Warn("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err = fn(&entryTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type entryTx struct {
	tx *sql.Tx
}

func (t *entryTx) Get(ctx context.Context, id int64) (*models.RoomEntry, error) {
	return getEntry(ctx, t.tx, id, true)
}

func (t *entryTx) FindOpen(ctx context.Context, monitorID int64) (*models.RoomEntry, error) {
	return findOpenEntry(ctx, t.tx, monitorID, true)
}

func (t *entryTx) ScanPage(ctx context.Context, filter models.EntryFilter, after *models.EntryCursor, limit int) ([]models.RoomEntry, *models.EntryCursor, error) {
	return scanEntryPage(ctx, t.tx, filter, after, limit)
}

func (t *entryTx) Insert(ctx context.Context, entry *models.RoomEntry) (int64, error) {
	query := `
		INSERT INTO room_entries (monitor_id, room_id, entry_time, exit_time, active, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var exit sql.NullTime
	if entry.ExitTime != nil {
		exit = sql.NullTime{Time: *entry.ExitTime, Valid: true}
	}

	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		entry.MonitorID,
		entry.RoomID,
		entry.EntryTime,
		exit,
		entry.Active,
		entry.Notes,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", models.ErrStorageConflict, err)
		}
		if constraint, ok := foreignKeyConstraint(err); ok {
			switch constraint {
			case constraintEntryMonitorFK:
				return 0, models.ErrUnknownMonitor
			case constraintEntryRoomFK:
				return 0, models.ErrUnknownRoom
			}
		}
		return 0, fmt.Errorf("failed to insert room entry: %w", err)
	}

	entry.ID = id
	return id, nil
}

func (t *entryTx) UpdateExit(ctx context.Context, id int64, exitTime time.Time, upd ExitUpdate) (*models.RoomEntry, error) {
	// the WHERE clause keeps exit_time write-once and strictly after entry_time
	query := `
		UPDATE room_entries
		SET exit_time = $2,
		    active = false,
		    notes = COALESCE($3, notes),
		    closed_by = $4,
		    updated_at = $5
		WHERE id = $1
		  AND active
		  AND entry_time < $2
		RETURNING ` + entryColumns

	var notes sql.NullString
	if upd.Notes != nil {
		notes = sql.NullString{String: *upd.Notes, Valid: true}
	}
	var closedBy sql.NullInt64
	if upd.ClosedBy != nil {
		closedBy = sql.NullInt64{Int64: *upd.ClosedBy, Valid: true}
	}

	entry, err := scanEntry(t.tx.QueryRowContext(ctx, query, id, exitTime, notes, closedBy, upd.UpdatedAt))
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update room entry exit: %w", err)
	}

	// nothing updated: work out why
	current, err := getEntry(ctx, t.tx, id, false)
	if err != nil {
		return nil, err
	}
	if !current.Active {
		return nil, models.ErrAlreadyClosed
	}
	return nil, models.ErrInvalidExit
}

func getEntry(ctx context.Context, q querier, id int64, lock bool) (*models.RoomEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM room_entries WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room entry: %w", err)
	}
	return entry, nil
}

func findOpenEntry(ctx context.Context, q querier, monitorID int64, lock bool) (*models.RoomEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM room_entries WHERE monitor_id = $1 AND active`
	if lock {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(q.QueryRowContext(ctx, query, monitorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open room entry: %w", err)
	}
	return entry, nil
}

func scanEntryPage(ctx context.Context, q querier, filter models.EntryFilter, after *models.EntryCursor, limit int) ([]models.RoomEntry, *models.EntryCursor, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	where, args := buildEntryWhere(filter, after)

	query := `SELECT ` + entryColumns + ` FROM room_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY entry_time DESC, id DESC LIMIT $%d`, len(args))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan room entries: %w", err)
	}
	defer rows.Close()

	var page []models.RoomEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan room entry row: %w", err)
		}
		page = append(page, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate room entries: %w", err)
	}
	return page, nextCursor(page, limit), nil
}

func buildEntryWhere(filter models.EntryFilter, after *models.EntryCursor) ([]string, []any) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if len(filter.MonitorIDs) > 0 {
		add("monitor_id = ANY($%d)", pq.Array(filter.MonitorIDs))
	}
	if filter.RoomID != nil {
		add("room_id = $%d", *filter.RoomID)
	}
	if filter.Active != nil {
		add("active = $%d", *filter.Active)
	}
	if filter.EntryFrom != nil {
		add("entry_time >= $%d", *filter.EntryFrom)
	}
	if filter.EntryTo != nil {
		add("entry_time < $%d", *filter.EntryTo)
	}
	if filter.ExitedSince != nil {
		add("exit_time >= $%d", *filter.ExitedSince)
	}
	if filter.MinDuration != nil {
		add("EXTRACT(EPOCH FROM (exit_time - entry_time)) > $%d", filter.MinDuration.Seconds())
	}
	if after != nil {
		args = append(args, after.EntryTime, after.ID)
		where = append(where, fmt.Sprintf("(entry_time, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	return where, args
}

func scanEntry(row rowScanner) (*models.RoomEntry, error) {
	var entry models.RoomEntry
	var exit sql.NullTime
	var notes sql.NullString
	var closedBy sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&entry.MonitorID,
		&entry.RoomID,
		&entry.EntryTime,
		&exit,
		&entry.Active,
		&notes,
		&closedBy,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if exit.Valid {
		t := exit.Time
		entry.ExitTime = &t
	}
	if notes.Valid {
		entry.Notes = notes.String
	}
	if closedBy.Valid {
		v := closedBy.Int64
		entry.ClosedBy = &v
	}
	return &entry, nil
}
