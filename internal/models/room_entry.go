package models

import (
	"time"
)

// RoomEntry one presence session of a monitor in a room (room_entries table).
// Active is true exactly while ExitTime is nil.
type RoomEntry struct {
	ID        int64      `json:"id" db:"id"`
	MonitorID int64      `json:"monitor_id" db:"monitor_id"`
	RoomID    int64      `json:"room_id" db:"room_id"`
	EntryTime time.Time  `json:"entry_time" db:"entry_time"`
	ExitTime  *time.Time `json:"exit_time,omitempty" db:"exit_time"`
	Active    bool       `json:"active" db:"active"`
	Notes     string     `json:"notes" db:"notes"`
	ClosedBy  *int64     `json:"closed_by,omitempty" db:"closed_by"` // admin id when force-closed
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Duration returns exit_time - entry_time for closed entries.
func (e *RoomEntry) Duration() (time.Duration, bool) {
	if e.ExitTime == nil {
		return 0, false
	}
	return e.ExitTime.Sub(e.EntryTime), true
}

// Elapsed is the closed duration, or now - entry_time while still open.
func (e *RoomEntry) Elapsed(now time.Time) time.Duration {
	if d, ok := e.Duration(); ok {
		return d
	}
	return now.Sub(e.EntryTime)
}

// In returns a copy with every instant converted to loc.
func (e RoomEntry) In(loc *time.Location) RoomEntry {
	e.EntryTime = e.EntryTime.In(loc)
	if e.ExitTime != nil {
		exit := e.ExitTime.In(loc)
		e.ExitTime = &exit
	}
	e.CreatedAt = e.CreatedAt.In(loc)
	e.UpdatedAt = e.UpdatedAt.In(loc)
	return e
}

// EntryFilter scan predicate. Nil fields do not filter.
type EntryFilter struct {
	MonitorIDs []int64
	RoomID     *int64
	Active     *bool
	// entry_time in [EntryFrom, EntryTo)
	EntryFrom *time.Time
	EntryTo   *time.Time
	// closed entries whose exit_time >= ExitedSince
	ExitedSince *time.Time
	// closed entries whose duration is strictly greater
	MinDuration *time.Duration
}

// Matches applies the filter to one entry.
func (f EntryFilter) Matches(e *RoomEntry) bool {
	if len(f.MonitorIDs) > 0 && !containsID(f.MonitorIDs, e.MonitorID) {
		return false
	}
	if f.RoomID != nil && e.RoomID != *f.RoomID {
		return false
	}
	if f.Active != nil && e.Active != *f.Active {
		return false
	}
	if f.EntryFrom != nil && e.EntryTime.Before(*f.EntryFrom) {
		return false
	}
	if f.EntryTo != nil && !e.EntryTime.Before(*f.EntryTo) {
		return false
	}
	if f.ExitedSince != nil && (e.ExitTime == nil || e.ExitTime.Before(*f.ExitedSince)) {
		return false
	}
	if f.MinDuration != nil {
		d, ok := e.Duration()
		if !ok || d <= *f.MinDuration {
			return false
		}
	}
	return true
}

// EntryCursor keyset position for scans ordered by (entry_time, id) descending.
type EntryCursor struct {
	EntryTime time.Time `json:"entry_time"`
	ID        int64     `json:"id"`
}

// After reports whether e sorts strictly after the cursor position.
func (c *EntryCursor) After(e *RoomEntry) bool {
	if c == nil {
		return true
	}
	if e.EntryTime.Equal(c.EntryTime) {
		return e.ID < c.ID
	}
	return e.EntryTime.Before(c.EntryTime)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
