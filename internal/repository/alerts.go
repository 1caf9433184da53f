package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"

	"go.uber.org/zap"
)

// AlertRepository alerts on Postgres. Append-only apart from read_at.
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts the alert unless (entry_id, recipient_id, kind) already exists.
func (r *AlertRepository) Append(ctx context.Context, alert *models.Alert) (models.AppendResult, error) {
	query := `
		INSERT INTO alerts (entry_id, recipient_id, kind, duration_hours_at_detection, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entry_id, recipient_id, kind) DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		alert.EntryID,
		alert.RecipientID,
		string(alert.Kind),
		alert.DurationHoursAtDetection,
		alert.CreatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			r.logger.Debug("Alert already recorded",
				zap.Int64("entry_id", alert.EntryID),
				zap.Int64("recipient_id", alert.RecipientID),
				zap.String("kind", string(alert.Kind)),
			)
			return models.AppendDuplicate, nil
		}
		if _, ok := foreignKeyConstraint(err); ok {
			return 0, fmt.Errorf("alert references unknown entry or recipient: %w", models.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to append alert: %w", err)
	}

	alert.ID = id
	return models.AppendInserted, nil
}

// ListFor returns the recipient's alerts, newest first.
func (r *AlertRepository) ListFor(ctx context.Context, recipientID int64, filter models.AlertFilter) ([]models.Alert, error) {
	where := []string{"a.recipient_id = $1"}
	args := []any{recipientID}
	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		where = append(where, fmt.Sprintf("a.kind = $%d", len(args)))
	}
	if filter.UnreadOnly {
		where = append(where, "a.read_at IS NULL")
	}

	query := `
		SELECT a.id, a.entry_id, a.recipient_id, a.kind, a.duration_hours_at_detection,
		       a.read_at, a.created_at, e.monitor_id
		FROM alerts a
		JOIN room_entries e ON e.id = a.entry_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY a.created_at DESC, a.id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var kind string
		var readAt sql.NullTime
		if err := rows.Scan(
			&a.ID,
			&a.EntryID,
			&a.RecipientID,
			&kind,
			&a.DurationHoursAtDetection,
			&readAt,
			&a.CreatedAt,
			&a.MonitorID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Kind = models.AlertKind(kind)
		if readAt.Valid {
			t := readAt.Time
			a.ReadAt = &t
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// MarkRead sets read_at once; marking an already read alert keeps the first timestamp.
func (r *AlertRepository) MarkRead(ctx context.Context, alertID, recipientID int64, at time.Time) error {
	query := `
		UPDATE alerts
		SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, alertID, recipientID, at)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Summary counts alerts grouped by the offending entry's monitor.
func (r *AlertRepository) Summary(ctx context.Context, filter models.AlertSummaryFilter) (*models.AlertSummary, error) {
	var where []string
	var args []any
	if filter.RecipientID != nil {
		args = append(args, *filter.RecipientID)
		where = append(where, fmt.Sprintf("a.recipient_id = $%d", len(args)))
	}
	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		where = append(where, fmt.Sprintf("a.kind = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("a.created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("a.created_at < $%d", len(args)))
	}

	query := `
		SELECT e.monitor_id,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE a.read_at IS NULL)
		FROM alerts a
		JOIN room_entries e ON e.id = a.entry_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` GROUP BY e.monitor_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize alerts: %w", err)
	}
	defer rows.Close()

	summary := &models.AlertSummary{PerMonitorCount: map[int64]int{}}
	for rows.Next() {
		var monitorID int64
		var total, unread int
		if err := rows.Scan(&monitorID, &total, &unread); err != nil {
			return nil, fmt.Errorf("failed to scan alert summary: %w", err)
		}
		summary.PerMonitorCount[monitorID] = total
		summary.Total += total
		summary.Unread += unread
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert summary: %w", err)
	}
	return summary, nil
}
