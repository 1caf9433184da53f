package models

import (
	"encoding/json"
	"math"
	"time"
)

// RoundHours converts d to hours rounded to two decimals. Only used at output.
func RoundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

// MonitorTotal summed closed-entry time of one monitor inside a window.
type MonitorTotal struct {
	MonitorID  int64
	Total      time.Duration
	EntryCount int
}

func (t MonitorTotal) TotalHours() float64 { return RoundHours(t.Total) }

func (t MonitorTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MonitorID  int64   `json:"monitor_id"`
		TotalHours float64 `json:"total_hours"`
		EntryCount int     `json:"entry_count"`
	}{t.MonitorID, t.TotalHours(), t.EntryCount})
}

// RoomTotal summed time spent in one room.
type RoomTotal struct {
	RoomID     int64
	Total      time.Duration
	EntryCount int
}

func (t RoomTotal) TotalHours() float64 { return RoundHours(t.Total) }

func (t RoomTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RoomID     int64   `json:"room_id"`
		TotalHours float64 `json:"total_hours"`
		EntryCount int     `json:"entry_count"`
	}{t.RoomID, t.TotalHours(), t.EntryCount})
}

// DayTotal summed time for one civil date (date of entry_time).
type DayTotal struct {
	Date       string
	Total      time.Duration
	EntryCount int
}

func (t DayTotal) TotalHours() float64 { return RoundHours(t.Total) }

func (t DayTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date       string  `json:"date"`
		TotalHours float64 `json:"total_hours"`
		EntryCount int     `json:"entry_count"`
	}{t.Date, t.TotalHours(), t.EntryCount})
}

// OpenEntrySnapshot an active entry with the time elapsed so far.
type OpenEntrySnapshot struct {
	Entry   RoomEntry
	Elapsed time.Duration
}

func (s OpenEntrySnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RoomEntry
		ElapsedHours float64 `json:"elapsed_hours"`
	}{s.Entry, RoundHours(s.Elapsed)})
}
