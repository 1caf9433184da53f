package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
)

// MemoryEntryStore in-process entry store for local runs and tests.
// A transaction holds the write lock for its whole duration and is undone on error.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[int64]*models.RoomEntry
	nextID  int64
}

func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{
		entries: map[int64]*models.RoomEntry{},
	}
}

func (s *MemoryEntryStore) Get(ctx context.Context, id int64) (*models.RoomEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *MemoryEntryStore) FindOpen(ctx context.Context, monitorID int64) (*models.RoomEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findOpen(monitorID), nil
}

func (s *MemoryEntryStore) ScanPage(ctx context.Context, filter models.EntryFilter, after *models.EntryCursor, limit int) ([]models.RoomEntry, *models.EntryCursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, next := s.scanPage(filter, after, limit)
	return page, next, nil
}

func (s *MemoryEntryStore) WithTx(ctx context.Context, fn func(tx EntryTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryEntryTx{store: s}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Count returns how many entries are stored.
func (s *MemoryEntryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryEntryStore) get(id int64) (*models.RoomEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryEntryStore) findOpen(monitorID int64) *models.RoomEntry {
	for _, e := range s.entries {
		if e.MonitorID == monitorID && e.Active {
			cp := *e
			return &cp
		}
	}
	return nil
}

func (s *MemoryEntryStore) scanPage(filter models.EntryFilter, after *models.EntryCursor, limit int) ([]models.RoomEntry, *models.EntryCursor) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	var matched []models.RoomEntry
	for _, e := range s.entries {
		if filter.Matches(e) && after.After(e) {
			matched = append(matched, *e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].EntryTime.Equal(matched[j].EntryTime) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].EntryTime.After(matched[j].EntryTime)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nextCursor(matched, limit)
}

type memoryEntryTx struct {
	store *MemoryEntryStore
	undo  []func()
}

func (t *memoryEntryTx) Get(ctx context.Context, id int64) (*models.RoomEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.store.get(id)
}

func (t *memoryEntryTx) FindOpen(ctx context.Context, monitorID int64) (*models.RoomEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.store.findOpen(monitorID), nil
}

func (t *memoryEntryTx) ScanPage(ctx context.Context, filter models.EntryFilter, after *models.EntryCursor, limit int) ([]models.RoomEntry, *models.EntryCursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	page, next := t.store.scanPage(filter, after, limit)
	return page, next, nil
}

func (t *memoryEntryTx) Insert(ctx context.Context, entry *models.RoomEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// same rule as the partial unique index on (monitor_id) WHERE active
	if entry.Active && t.store.findOpen(entry.MonitorID) != nil {
		return 0, models.ErrStorageConflict
	}

	t.store.nextID++
	id := t.store.nextID
	cp := *entry
	cp.ID = id
	t.store.entries[id] = &cp
	t.undo = append(t.undo, func() {
		delete(t.store.entries, id)
		t.store.nextID--
	})

	entry.ID = id
	return id, nil
}

func (t *memoryEntryTx) UpdateExit(ctx context.Context, id int64, exitTime time.Time, upd ExitUpdate) (*models.RoomEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := t.store.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !e.Active {
		return nil, models.ErrAlreadyClosed
	}
	if !exitTime.After(e.EntryTime) {
		return nil, models.ErrInvalidExit
	}

	before := *e
	t.undo = append(t.undo, func() {
		restored := before
		t.store.entries[id] = &restored
	})

	exit := exitTime
	e.ExitTime = &exit
	e.Active = false
	if upd.Notes != nil {
		e.Notes = *upd.Notes
	}
	e.ClosedBy = upd.ClosedBy
	e.UpdatedAt = upd.UpdatedAt

	cp := *e
	return &cp, nil
}

func (t *memoryEntryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
