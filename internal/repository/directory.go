package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// DirectoryRepository read-only view of monitors and rooms.
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *DirectoryRepository) MonitorExists(ctx context.Context, monitorID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM monitors WHERE id = $1)`, monitorID)
}

func (r *DirectoryRepository) RoomExists(ctx context.Context, roomID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID)
}

func (r *DirectoryRepository) IsAdmin(ctx context.Context, monitorID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM monitors WHERE id = $1 AND role = 'admin')`, monitorID)
}

func (r *DirectoryRepository) exists(ctx context.Context, query string, id int64) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to query directory: %w", err)
	}
	return ok, nil
}

// AdminIDs is the default alert recipient set.
func (r *DirectoryRepository) AdminIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM monitors WHERE role = 'admin' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListMonitors returns the given monitors, or all of them when ids is empty.
func (r *DirectoryRepository) ListMonitors(ctx context.Context, ids []int64) ([]models.Monitor, error) {
	query := `SELECT id, display_name, role, verified FROM monitors`
	var args []any
	if len(ids) > 0 {
		query += ` WHERE id = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	defer rows.Close()

	var out []models.Monitor
	for rows.Next() {
		var m models.Monitor
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.Role, &m.Verified); err != nil {
			return nil, fmt.Errorf("failed to scan monitor: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
