package models

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInRoom   = errors.New("monitor already has an active entry")
	ErrNoActiveEntry   = errors.New("monitor has no active entry")
	ErrAlreadyClosed   = errors.New("entry already closed")
	ErrUnknownMonitor  = errors.New("unknown monitor")
	ErrUnknownRoom     = errors.New("unknown room")
	ErrNotFound        = errors.New("not found")
	ErrInvalidExit     = errors.New("exit time must be after entry time")
	ErrClockRegression = errors.New("clock is at or before entry time")
	ErrStorageConflict = errors.New("storage unique constraint violated")
	ErrTimeout         = errors.New("operation timed out")
	ErrNotAdmin        = errors.New("actor is not an admin")
)

// EntryError carries the failing operation and the entities involved.
type EntryError struct {
	Op        string
	MonitorID int64
	EntryID   int64
	Err       error
}

func (e *EntryError) Error() string {
	switch {
	case e.EntryID != 0 && e.MonitorID != 0:
		return fmt.Sprintf("%s: monitor %d entry %d: %v", e.Op, e.MonitorID, e.EntryID, e.Err)
	case e.EntryID != 0:
		return fmt.Sprintf("%s: entry %d: %v", e.Op, e.EntryID, e.Err)
	case e.MonitorID != 0:
		return fmt.Sprintf("%s: monitor %d: %v", e.Op, e.MonitorID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
