package models

import (
	"time"
)

// AlertKind distinguishes a finished long session from one still running long.
type AlertKind string

const (
	AlertThresholdCrossed       AlertKind = "threshold_crossed"
	AlertStillOpenOverThreshold AlertKind = "still_open_over_threshold"
)

// Valid reports whether k is a known kind.
func (k AlertKind) Valid() bool {
	return k == AlertThresholdCrossed || k == AlertStillOpenOverThreshold
}

// Alert excessive-hours alert (alerts table). (EntryID, RecipientID, Kind) is unique.
type Alert struct {
	ID                       int64      `json:"id" db:"id"`
	EntryID                  int64      `json:"entry_id" db:"entry_id"`
	RecipientID              int64      `json:"recipient_id" db:"recipient_id"`
	Kind                     AlertKind  `json:"kind" db:"kind"`
	DurationHoursAtDetection float64    `json:"duration_hours_at_detection" db:"duration_hours_at_detection"`
	ReadAt                   *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt                time.Time  `json:"created_at" db:"created_at"`

	// MonitorID of the offending entry, filled on reads.
	MonitorID int64 `json:"monitor_id" db:"monitor_id"`
}

// AppendResult outcome of appending an alert to the sink.
type AppendResult int

const (
	AppendInserted AppendResult = iota + 1
	AppendDuplicate
)

func (r AppendResult) String() string {
	switch r {
	case AppendInserted:
		return "inserted"
	case AppendDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// AlertFilter list_for filters.
type AlertFilter struct {
	Kind       *AlertKind
	UnreadOnly bool
	Limit      int
	Offset     int
}

// AlertSummaryFilter summary filters. Nil fields do not filter.
type AlertSummaryFilter struct {
	RecipientID *int64
	Kind        *AlertKind
	From        *time.Time
	To          *time.Time
}

// AlertSummary counts alerts; PerMonitorCount keys by the offending entry's monitor.
type AlertSummary struct {
	Total           int           `json:"total"`
	Unread          int           `json:"unread"`
	PerMonitorCount map[int64]int `json:"per_monitor_count"`
}
