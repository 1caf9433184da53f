package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
)

// MemoryDirectory in-process monitors and rooms.
type MemoryDirectory struct {
	mu       sync.RWMutex
	monitors map[int64]models.Monitor
	rooms    map[int64]models.Room
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		monitors: map[int64]models.Monitor{},
		rooms:    map[int64]models.Room{},
	}
}

func (d *MemoryDirectory) AddMonitor(m models.Monitor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.monitors[m.ID] = m
}

func (d *MemoryDirectory) AddRoom(r models.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[r.ID] = r
}

func (d *MemoryDirectory) MonitorExists(_ context.Context, monitorID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.monitors[monitorID]
	return ok, nil
}

func (d *MemoryDirectory) RoomExists(_ context.Context, roomID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[roomID]
	return ok, nil
}

func (d *MemoryDirectory) IsAdmin(_ context.Context, monitorID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.monitors[monitorID]
	return ok && m.Role == models.RoleAdmin, nil
}

func (d *MemoryDirectory) AdminIDs(_ context.Context) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []int64
	for id, m := range d.monitors {
		if m.Role == models.RoleAdmin {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (d *MemoryDirectory) ListMonitors(_ context.Context, ids []int64) ([]models.Monitor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.Monitor
	if len(ids) == 0 {
		for _, m := range d.monitors {
			out = append(out, m)
		}
	} else {
		for _, id := range ids {
			if m, ok := d.monitors[id]; ok {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
