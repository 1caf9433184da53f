// Package aggregator answers read-only duration queries over room entries.
// Durations are summed as time.Duration and rounded only when rendered.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/repository"

	"go.uber.org/zap"
)

// Query narrows the entries an aggregation looks at.
type Query struct {
	MonitorIDs []int64
	RoomID     *int64
	// IncludeOpen counts active entries up to now.
	IncludeOpen bool
}

type Aggregator struct {
	entries repository.EntryReader
	clock   clock.Clock
	logger  *zap.Logger
}

func NewAggregator(entries repository.EntryReader, clk clock.Clock, logger *zap.Logger) *Aggregator {
	return &Aggregator{entries: entries, clock: clk, logger: logger}
}

// PerMonitorTotals sums durations of entries whose entry_time falls in w, by monitor.
// Every requested monitor id is present in the result, with zero totals if idle.
func (a *Aggregator) PerMonitorTotals(ctx context.Context, w clock.Window, q Query) (map[int64]models.MonitorTotal, error) {
	out := make(map[int64]models.MonitorTotal, len(q.MonitorIDs))
	for _, id := range q.MonitorIDs {
		out[id] = models.MonitorTotal{MonitorID: id}
	}

	err := a.walk(ctx, w, q, func(e models.RoomEntry, d time.Duration) {
		t := out[e.MonitorID]
		t.MonitorID = e.MonitorID
		t.Total += d
		t.EntryCount++
		out[e.MonitorID] = t
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute monitor totals: %w", err)
	}
	return out, nil
}

// PerRoomTotals sums durations by room.
func (a *Aggregator) PerRoomTotals(ctx context.Context, w clock.Window, q Query) (map[int64]models.RoomTotal, error) {
	out := map[int64]models.RoomTotal{}
	err := a.walk(ctx, w, q, func(e models.RoomEntry, d time.Duration) {
		t := out[e.RoomID]
		t.RoomID = e.RoomID
		t.Total += d
		t.EntryCount++
		out[e.RoomID] = t
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute room totals: %w", err)
	}
	return out, nil
}

// PerDayTotals sums durations by the civil date of entry_time, ascending by date.
func (a *Aggregator) PerDayTotals(ctx context.Context, w clock.Window, q Query) ([]models.DayTotal, error) {
	loc := a.clock.Location()
	byDate := map[string]*models.DayTotal{}
	err := a.walk(ctx, w, q, func(e models.RoomEntry, d time.Duration) {
		date := clock.CivilDate(e.EntryTime, loc)
		t, ok := byDate[date]
		if !ok {
			t = &models.DayTotal{Date: date}
			byDate[date] = t
		}
		t.Total += d
		t.EntryCount++
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily totals: %w", err)
	}

	out := make([]models.DayTotal, 0, len(byDate))
	for _, t := range byDate {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// EntriesIn lists entries whose entry_time falls in w, newest first.
func (a *Aggregator) EntriesIn(ctx context.Context, w clock.Window, q Query) ([]models.RoomEntry, error) {
	var out []models.RoomEntry
	loc := a.clock.Location()
	err := a.scan(ctx, w, q, func(e models.RoomEntry) {
		out = append(out, e.In(loc))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return out, nil
}

// OpenEntriesSnapshot lists active entries with their elapsed time at now.
func (a *Aggregator) OpenEntriesSnapshot(ctx context.Context) ([]models.OpenEntrySnapshot, error) {
	now := a.clock.Now()
	loc := a.clock.Location()
	active := true

	var out []models.OpenEntrySnapshot
	err := repository.ScanAll(ctx, a.entries, models.EntryFilter{Active: &active}, repository.DefaultPageSize,
		func(e models.RoomEntry) error {
			out = append(out, models.OpenEntrySnapshot{Entry: e.In(loc), Elapsed: elapsed(e, now)})
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot open entries: %w", err)
	}
	return out, nil
}

func (a *Aggregator) walk(ctx context.Context, w clock.Window, q Query, fn func(models.RoomEntry, time.Duration)) error {
	now := a.clock.Now()
	a.logger.Debug("Aggregating entries",
		zap.Time("from", w.From),
		zap.Time("to", w.To),
		zap.Int64s("monitor_ids", q.MonitorIDs),
		zap.Bool("include_open", q.IncludeOpen),
	)
	return a.scan(ctx, w, q, func(e models.RoomEntry) {
		fn(e, elapsed(e, now))
	})
}

func (a *Aggregator) scan(ctx context.Context, w clock.Window, q Query, fn func(models.RoomEntry)) error {
	if err := w.Validate(); err != nil {
		return err
	}
	filter := models.EntryFilter{
		MonitorIDs: q.MonitorIDs,
		RoomID:     q.RoomID,
		EntryFrom:  &w.From,
		EntryTo:    &w.To,
	}
	if !q.IncludeOpen {
		closed := false
		filter.Active = &closed
	}
	return repository.ScanAll(ctx, a.entries, filter, repository.DefaultPageSize, func(e models.RoomEntry) error {
		fn(e)
		return nil
	})
}

// elapsed never goes negative for an open entry seen through a lagging clock.
func elapsed(e models.RoomEntry, now time.Time) time.Duration {
	d := e.Elapsed(now)
	if d < 0 {
		return 0
	}
	return d
}
