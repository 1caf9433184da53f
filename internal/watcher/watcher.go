// Package watcher detects entries that ran past the excess-hours threshold
// and appends one alert per recipient for them.
package watcher

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

// RecipientsResolver returns the monitor ids notified of an offence.
type RecipientsResolver func(ctx context.Context) ([]int64, error)

// FixedRecipients always resolves to ids.
func FixedRecipients(ids ...int64) RecipientsResolver {
	return func(context.Context) ([]int64, error) {
		return ids, nil
	}
}

// SweepResult counts of one sweep pass.
type SweepResult struct {
	OpenChecked   int `json:"open_checked"`
	ClosedChecked int `json:"closed_checked"`
	Created       int `json:"created"`
	Duplicates    int `json:"duplicates"`
}

// Watcher threshold watcher.
type Watcher struct {
	entries    repository.EntryReader
	alerts     repository.AlertStore
	recipients RecipientsResolver
	clock      clock.Clock
	publisher  events.Publisher
	threshold  time.Duration
	lookback   time.Duration
	logger     *zap.Logger
}

// NewWatcher lookback is how far back a sweep re-checks closed entries; 0 disables that pass.
func NewWatcher(
	entries repository.EntryReader,
	alerts repository.AlertStore,
	recipients RecipientsResolver,
	clk clock.Clock,
	publisher events.Publisher,
	threshold time.Duration,
	lookback time.Duration,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		entries:    entries,
		alerts:     alerts,
		recipients: recipients,
		clock:      clk,
		publisher:  publisher,
		threshold:  threshold,
		lookback:   lookback,
		logger:     logger,
	}
}

// EntryOpened logs when the new entry will cross the threshold.
func (w *Watcher) EntryOpened(_ context.Context, entry models.RoomEntry) {
	w.logger.Debug("Watching room entry",
		zap.Int64("entry_id", entry.ID),
		zap.Int64("monitor_id", entry.MonitorID),
		zap.Time("crosses_threshold_at", entry.EntryTime.Add(w.threshold)),
	)
}

// EntryClosed runs CheckClosed. Failures are logged; the recovery sweep retries them.
func (w *Watcher) EntryClosed(ctx context.Context, entry models.RoomEntry) {
	if _, err := w.CheckClosed(ctx, entry); err != nil {
		w.logger.Error("Failed to check closed entry",
			zap.Int64("entry_id", entry.ID),
			zap.Int64("monitor_id", entry.MonitorID),
			zap.Error(err),
		)
	}
}

// CheckClosed appends threshold_crossed alerts when the entry's duration is
// strictly greater than the threshold. Returns how many alerts were inserted.
func (w *Watcher) CheckClosed(ctx context.Context, entry models.RoomEntry) (int, error) {
	d, ok := entry.Duration()
	if !ok || d <= w.threshold {
		return 0, nil
	}

	recipients, err := w.resolve(ctx)
	if err != nil {
		return 0, err
	}
	created, _, err := w.appendAlerts(ctx, entry, models.AlertThresholdCrossed, d, recipients)
	return created, err
}

// Sweep checks every open entry and the entries closed within the lookback
// window. Running it again over unchanged state inserts nothing.
func (w *Watcher) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := w.clock.Now()

	recipients, err := w.resolve(ctx)
	if err != nil {
		return result, err
	}

	var errs []error
	active := true
	err = repository.ScanAll(ctx, w.entries, models.EntryFilter{Active: &active}, repository.DefaultPageSize,
		func(entry models.RoomEntry) error {
			result.OpenChecked++
			elapsed := entry.Elapsed(now)
			if elapsed <= w.threshold {
				return nil
			}
			created, dups, err := w.appendAlerts(ctx, entry, models.AlertStillOpenOverThreshold, elapsed, recipients)
			result.Created += created
			result.Duplicates += dups
			if err != nil {
				errs = append(errs, err)
			}
			return ctx.Err()
		})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to scan open entries: %w", err))
	}

	if w.lookback > 0 && ctx.Err() == nil {
		inactive := false
		since := now.Add(-w.lookback)
		threshold := w.threshold
		filter := models.EntryFilter{Active: &inactive, ExitedSince: &since, MinDuration: &threshold}
		err = repository.ScanAll(ctx, w.entries, filter, repository.DefaultPageSize,
			func(entry models.RoomEntry) error {
				result.ClosedChecked++
				d, _ := entry.Duration()
				created, dups, err := w.appendAlerts(ctx, entry, models.AlertThresholdCrossed, d, recipients)
				result.Created += created
				result.Duplicates += dups
				if err != nil {
					errs = append(errs, err)
				}
				return ctx.Err()
			})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to scan closed entries: %w", err))
		}
	}

	w.logger.Info("Threshold sweep finished",
		zap.Int("open_checked", result.OpenChecked),
		zap.Int("closed_checked", result.ClosedChecked),
		zap.Int("created", result.Created),
		zap.Int("duplicates", result.Duplicates),
	)
	return result, errors.Join(errs...)
}

func (w *Watcher) resolve(ctx context.Context) ([]int64, error) {
	recipients, err := w.recipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alert recipients: %w", err)
	}
	if len(recipients) == 0 {
		w.logger.Warn("No alert recipients configured")
	}
	return recipients, nil
}

func (w *Watcher) appendAlerts(ctx context.Context, entry models.RoomEntry, kind models.AlertKind, d time.Duration, recipients []int64) (created, duplicates int, err error) {
	now := w.clock.Now()
	for _, recipientID := range recipients {
		alert := models.Alert{
			EntryID:                  entry.ID,
			RecipientID:              recipientID,
			Kind:                     kind,
			DurationHoursAtDetection: d.Hours(),
			CreatedAt:                now,
			MonitorID:                entry.MonitorID,
		}
		res, err := w.alerts.Append(ctx, &alert)
		if err != nil {
			return created, duplicates, fmt.Errorf("failed to append %s alert for entry %d: %w", kind, entry.ID, err)
		}
		if res == models.AppendDuplicate {
			duplicates++
			continue
		}

		created++
		w.logger.Info("Excessive hours alert created",
			zap.Int64("alert_id", alert.ID),
			zap.Int64("entry_id", entry.ID),
			zap.Int64("monitor_id", entry.MonitorID),
			zap.Int64("recipient_id", recipientID),
			zap.String("kind", string(kind)),
			zap.Float64("duration_hours", models.RoundHours(d)),
		)
		if w.publisher != nil {
			if err := w.publisher.Publish(ctx, events.NewAlertEvent(alert, now)); err != nil {
				w.logger.Warn("Failed to publish alert event", zap.Int64("alert_id", alert.ID), zap.Error(err))
			}
		}
	}
	return created, duplicates, nil
}
