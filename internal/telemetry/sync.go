package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/saleswire/agentsync/internal/engine"
)

const syncScopeName = "github.com/saleswire/agentsync/sync"

// SyncMetrics holds the instruments for completed sync runs. Hook its
// Record method into the scheduler's OnResult callback.
type SyncMetrics struct {
	tracer   trace.Tracer
	runs     metric.Int64Counter
	inserted metric.Int64Counter
	updated  metric.Int64Counter
	skipped  metric.Int64Counter
	deleted  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewSyncMetrics creates the sync instruments. When telemetry is
// disabled it returns nil; a nil *SyncMetrics records nothing.
func NewSyncMetrics() *SyncMetrics {
	if !Enabled() {
		return nil
	}
	m := Meter(syncScopeName)
	runs, _ := m.Int64Counter("sync.runs",
		metric.WithDescription("Completed sync runs by kind and outcome"),
	)
	inserted, _ := m.Int64Counter("sync.records.inserted",
		metric.WithDescription("Records inserted by sync runs"),
	)
	updated, _ := m.Int64Counter("sync.records.updated",
		metric.WithDescription("Records updated by sync runs"),
	)
	skipped, _ := m.Int64Counter("sync.records.skipped",
		metric.WithDescription("Records skipped by sync runs"),
	)
	deleted, _ := m.Int64Counter("sync.records.deleted",
		metric.WithDescription("Records deleted by sync runs"),
	)
	duration, _ := m.Float64Histogram("sync.duration_ms",
		metric.WithDescription("Sync run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &SyncMetrics{
		tracer:   Tracer(syncScopeName),
		runs:     runs,
		inserted: inserted,
		updated:  updated,
		skipped:  skipped,
		deleted:  deleted,
		duration: duration,
	}
}

// Record counts one finished run and emits a span covering its duration.
func (m *SyncMetrics) Record(ctx context.Context, res engine.Result) {
	if m == nil {
		return
	}
	outcome := "success"
	if res.Failure != nil {
		outcome = string(res.Failure.Kind)
	}
	kind := attribute.String("kind", string(res.Kind))

	m.runs.Add(ctx, 1, metric.WithAttributes(kind, attribute.String("outcome", outcome)))
	m.inserted.Add(ctx, int64(res.Inserted), metric.WithAttributes(kind))
	m.updated.Add(ctx, int64(res.Updated), metric.WithAttributes(kind))
	m.skipped.Add(ctx, int64(res.Skipped), metric.WithAttributes(kind))
	m.deleted.Add(ctx, int64(res.Deleted), metric.WithAttributes(kind))
	m.duration.Record(ctx, float64(res.Duration.Milliseconds()), metric.WithAttributes(kind))

	// The run already finished, so the span is emitted retroactively
	// with explicit start and end timestamps.
	end := time.Now()
	_, span := m.tracer.Start(ctx, "sync."+string(res.Kind),
		trace.WithTimestamp(end.Add(-res.Duration)),
		trace.WithAttributes(
			kind,
			attribute.String("user.id", res.UserID),
			attribute.String("outcome", outcome),
			attribute.Int("records.processed", res.Processed),
		),
	)
	if res.Failure != nil {
		span.RecordError(res.Failure)
		span.SetStatus(codes.Error, res.Failure.Error())
	}
	span.End(trace.WithTimestamp(end))
}
