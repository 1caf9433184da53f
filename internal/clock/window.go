package clock

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the civil date format accepted from callers.
const DateLayout = "2006-01-02"

// Window is the half-open interval [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Validate rejects empty or inverted windows.
func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return errors.New("window bounds are required")
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("window start %s is not before end %s", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// DayWindow converts a civil date into [00:00 local, 00:00 local next day).
func DayWindow(date string, loc *time.Location) (Window, error) {
	return DateRangeWindow(date, date, loc)
}

// DateRangeWindow covers the civil dates fromDate..toDate inclusive.
func DateRangeWindow(fromDate, toDate string, loc *time.Location) (Window, error) {
	from, err := time.ParseInLocation(DateLayout, fromDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("invalid date %q: %w", fromDate, err)
	}
	to, err := time.ParseInLocation(DateLayout, toDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("invalid date %q: %w", toDate, err)
	}
	if to.Before(from) {
		return Window{}, fmt.Errorf("date range %s..%s is inverted", fromDate, toDate)
	}
	// AddDate keeps the wall clock at midnight across DST changes.
	return Window{From: from, To: to.AddDate(0, 0, 1)}, nil
}

// CivilDate formats t as a date in loc.
func CivilDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
