package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("event queue full")

// Async hands events to a background worker so callers never wait on a broker or webhook.
// Each event gets its own deadline, detached from the caller's context.
type Async struct {
	inner   Publisher
	queue   chan Event
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(inner Publisher, buffer int, timeout time.Duration, logger *zap.Logger) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		inner:   inner,
		queue:   make(chan Event, buffer),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues event and returns without blocking. A full or closed queue drops it.
func (a *Async) Publish(_ context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrQueueFull
	}
	select {
	case a.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for the queued ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		a.deliver(event)
	}
}

func (a *Async) deliver(event Event) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := a.inner.Publish(ctx, event); err != nil {
		a.logger.Warn("Failed to deliver event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
