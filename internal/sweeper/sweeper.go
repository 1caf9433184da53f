// Package sweeper runs the threshold sweep on a fixed interval.
package sweeper

import (
	"context"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/watcher"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Target is what a sweep pass runs against.
type Target interface {
	Sweep(ctx context.Context) (watcher.SweepResult, error)
}

// Sweeper periodic job calling Target.Sweep.
type Sweeper struct {
	target   Target
	interval time.Duration
	tracer   trace.Tracer
	logger   *zap.Logger
}

func NewSweeper(target Target, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		target:   target,
		interval: interval,
		tracer:   otel.Tracer("monitor-attendance/sweeper"),
		logger:   logger,
	}
}

// Enabled reports whether a positive interval is configured.
func (s *Sweeper) Enabled() bool {
	return s.interval > 0
}

// Start blocks until ctx is done. It sweeps once right away, then on every tick.
// A disabled sweeper returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("Threshold sweeper disabled")
		return nil
	}

	s.logger.Info("Threshold sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Threshold sweeper stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "threshold.sweep")
	defer span.End()

	result, err := s.target.Sweep(ctx)
	span.SetAttributes(
		attribute.Int("sweep.open_checked", result.OpenChecked),
		attribute.Int("sweep.closed_checked", result.ClosedChecked),
		attribute.Int("sweep.created", result.Created),
		attribute.Int("sweep.duplicates", result.Duplicates),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep failed")
		if ctx.Err() != nil {
			return
		}
		// next tick retries
		s.logger.Error("Threshold sweep failed", zap.Error(err))
	}
}
