package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
)

type alertKey struct {
	entryID     int64
	recipientID int64
	kind        models.AlertKind
}

// MemoryAlertStore in-process notification sink. entries resolves the monitor of each alert.
type MemoryAlertStore struct {
	mu      sync.RWMutex
	alerts  map[int64]*models.Alert
	byKey   map[alertKey]int64
	nextID  int64
	entries EntryReader
}

func NewMemoryAlertStore(entries EntryReader) *MemoryAlertStore {
	return &MemoryAlertStore{
		alerts:  map[int64]*models.Alert{},
		byKey:   map[alertKey]int64{},
		entries: entries,
	}
}

func (s *MemoryAlertStore) Append(ctx context.Context, alert *models.Alert) (models.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	entry, err := s.entries.Get(ctx, alert.EntryID)
	if err != nil {
		return 0, fmt.Errorf("alert references unknown entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := alertKey{alert.EntryID, alert.RecipientID, alert.Kind}
	if _, ok := s.byKey[key]; ok {
		return models.AppendDuplicate, nil
	}
	s.nextID++
	cp := *alert
	cp.ID = s.nextID
	cp.MonitorID = entry.MonitorID
	s.alerts[cp.ID] = &cp
	s.byKey[key] = cp.ID

	alert.ID = cp.ID
	alert.MonitorID = entry.MonitorID
	return models.AppendInserted, nil
}

func (s *MemoryAlertStore) ListFor(ctx context.Context, recipientID int64, filter models.AlertFilter) ([]models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Alert
	for _, a := range s.alerts {
		if a.RecipientID != recipientID {
			continue
		}
		if filter.Kind != nil && a.Kind != *filter.Kind {
			continue
		}
		if filter.UnreadOnly && a.ReadAt != nil {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryAlertStore) MarkRead(ctx context.Context, alertID, recipientID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok || a.RecipientID != recipientID {
		return models.ErrNotFound
	}
	if a.ReadAt == nil {
		t := at
		a.ReadAt = &t
	}
	return nil
}

func (s *MemoryAlertStore) Summary(ctx context.Context, filter models.AlertSummaryFilter) (*models.AlertSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &models.AlertSummary{PerMonitorCount: map[int64]int{}}
	for _, a := range s.alerts {
		if filter.RecipientID != nil && a.RecipientID != *filter.RecipientID {
			continue
		}
		if filter.Kind != nil && a.Kind != *filter.Kind {
			continue
		}
		if filter.From != nil && a.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !a.CreatedAt.Before(*filter.To) {
			continue
		}
		summary.Total++
		if a.ReadAt == nil {
			summary.Unread++
		}
		summary.PerMonitorCount[a.MonitorID]++
	}
	return summary, nil
}
