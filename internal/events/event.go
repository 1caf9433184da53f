// Package events publishes presence and alert events to outside consumers
// (notification delivery, dashboards). Publishing happens after commit and
// never changes the outcome of the operation that produced the event.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	EntryOpened  EventType = "entry_opened"
	EntryClosed  EventType = "entry_closed"
	AlertCreated EventType = "alert_created"
)

// Event outbound payload.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Entry      *models.RoomEntry `json:"entry,omitempty"`
	Alert      *models.Alert     `json:"alert,omitempty"`
}

func NewEntryEvent(t EventType, entry models.RoomEntry, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: at, Entry: &entry}
}

func NewAlertEvent(alert models.Alert, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: AlertCreated, OccurredAt: at, Alert: &alert}
}

// Publisher delivers one event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes every event to all publishers and joins their errors.
type Fanout struct {
	publishers []Publisher
	logger     *zap.Logger
}

func NewFanout(logger *zap.Logger, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, logger: logger}
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Warn("Failed to publish event",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wired publishers.
func (f *Fanout) Len() int {
	return len(f.publishers)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters Events by type.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
