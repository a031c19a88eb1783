// Package repository loads and saves event-sourced aggregates. A load restores
// the latest snapshot and replays the tail of the stream; a save appends the
// pending events under an optimistic version check, publishes them and takes
// a snapshot when the configured cadence is reached.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tenantcore/internal/audit"
	"tenantcore/internal/platform/metrics"
	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/platform/sentinel"
)

// DefaultSnapshotInterval is used when no interval is configured.
const DefaultSnapshotInterval int64 = 50

type EventStore interface {
	Append(ctx context.Context, aggregateID *domain.Identity, expectedVersion int64, events []event.Event) error
	Load(ctx context.Context, aggregateID *domain.Identity, afterVersion int64) ([]event.Event, error)
}

type SnapshotStore interface {
	Save(ctx context.Context, snap aggregate.Snapshot) error
	Latest(ctx context.Context, aggregateID string) (aggregate.Snapshot, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, events []event.Event) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Factory returns an empty aggregate for id, ready for rehydration.
type Factory[A aggregate.Aggregate] func(id *domain.Identity) A

type options struct {
	snapshots        SnapshotStore
	publisher        EventPublisher
	auditPublisher   AuditPublisher
	metrics          *metrics.Metrics
	logger           *slog.Logger
	tracer           trace.Tracer
	snapshotInterval int64
}

type Option func(*options)

func WithSnapshots(store SnapshotStore) Option {
	return func(o *options) { o.snapshots = store }
}

func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(o *options) { o.auditPublisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithSnapshotInterval sets how many events may accumulate past the last
// snapshot before a save takes a new one. Non-positive values are ignored.
func WithSnapshotInterval(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.snapshotInterval = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:           slog.Default(),
		tracer:           otel.Tracer("tenantcore/repository"),
		snapshotInterval: DefaultSnapshotInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Repository persists one aggregate type.
type Repository[A aggregate.Aggregate] struct {
	events  EventStore
	factory Factory[A]
	options
}

// New constructs a Repository. The event store and factory are required.
func New[A aggregate.Aggregate](events EventStore, factory Factory[A], opts ...Option) (*Repository[A], error) {
	if events == nil {
		return nil, errors.New("event store is required")
	}
	if factory == nil {
		return nil, errors.New("aggregate factory is required")
	}
	return &Repository[A]{
		events:  events,
		factory: factory,
		options: buildOptions(opts),
	}, nil
}

// Load rebuilds the aggregate with the given id.
//
// Errors: CodeNotFound when neither a snapshot nor events exist; store and
// replay errors otherwise.
func (r *Repository[A]) Load(ctx context.Context, id *domain.Identity) (A, error) {
	var zero A
	if id == nil {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "aggregate id is required")
	}

	agg := r.factory(id)
	aggType := agg.Base().AggregateType()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "repository.Load", trace.WithAttributes(
		attribute.String("aggregate.type", aggType),
		attribute.String("aggregate.id", id.String()),
	))
	defer span.End()

	found, err := r.restoreSnapshot(ctx, agg, id)
	if err != nil {
		return zero, failSpan(span, err)
	}

	events, err := r.events.Load(ctx, id, agg.Base().Version())
	if err != nil {
		return zero, failSpan(span, fmt.Errorf("load %s %s events: %w", aggType, id, err))
	}
	if !found && len(events) == 0 {
		return zero, failSpan(span, dErrors.New(dErrors.CodeNotFound, aggType+" not found"))
	}
	if other := foreignType(events, aggType); other != "" {
		r.logger.WarnContext(ctx, "stream belongs to another aggregate type",
			"aggregate_id", id.String(), "aggregate_type", aggType, "stored_type", other)
		return zero, failSpan(span, dErrors.New(dErrors.CodeNotFound, aggType+" not found"))
	}
	if err := aggregate.Replay(agg, events); err != nil {
		return zero, failSpan(span, err)
	}

	span.SetAttributes(
		attribute.Int64("aggregate.version", agg.Base().Version()),
		attribute.Int("events.replayed", len(events)),
	)
	if r.metrics != nil {
		r.metrics.ObserveLoad(aggType, start)
	}
	return agg, nil
}

func (r *Repository[A]) restoreSnapshot(ctx context.Context, agg A, id *domain.Identity) (bool, error) {
	if r.snapshots == nil {
		return false, nil
	}
	if _, ok := any(agg).(aggregate.Snapshotter); !ok {
		return false, nil
	}
	snap, err := r.snapshots.Latest(ctx, id.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot of %s: %w", id, err)
	}
	if snap.AggregateType != agg.Base().AggregateType() {
		r.logger.WarnContext(ctx, "snapshot belongs to another aggregate type",
			"aggregate_id", id.String(), "aggregate_type", agg.Base().AggregateType(), "stored_type", snap.AggregateType)
		return false, dErrors.New(dErrors.CodeNotFound, agg.Base().AggregateType()+" not found")
	}
	if err := aggregate.Restore(agg, snap); err != nil {
		return false, err
	}
	return true, nil
}

// foreignType returns the first stored type in events that is not aggType.
// Streams are keyed by id alone, so an id of one aggregate type must not
// load as another.
func foreignType(events []event.Event, aggType string) string {
	for _, e := range events {
		if e.AggregateType != "" && e.AggregateType != aggType {
			return e.AggregateType
		}
	}
	return ""
}

// Save appends the aggregate's pending events. Publishing and snapshotting
// happen after the append is durable; their failures are logged and counted
// but do not fail the save.
//
// Errors: CodeVersionConflict when another writer advanced the stream; the
// caller should reload and retry.
func (r *Repository[A]) Save(ctx context.Context, agg A) error {
	root := agg.Base()
	if !root.HasPendingEvents() {
		return nil
	}
	aggType := root.AggregateType()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "repository.Save", trace.WithAttributes(
		attribute.String("aggregate.type", aggType),
		attribute.String("aggregate.id", root.ID().String()),
	))
	defer span.End()

	expected := root.ExpectedStoredVersion()
	pending := root.PendingEvents()
	if err := r.events.Append(ctx, root.ID(), expected, pending); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if r.metrics != nil {
				r.metrics.IncrementVersionConflict(aggType)
			}
			return failSpan(span, dErrors.Wrap(err, dErrors.CodeVersionConflict,
				fmt.Sprintf("%s %s changed since version %d", aggType, root.ID(), expected)))
		}
		return failSpan(span, fmt.Errorf("append %s events: %w", aggType, err))
	}

	committed := root.PullEvents()
	span.SetAttributes(attribute.Int("events.appended", len(committed)))
	if r.metrics != nil {
		r.metrics.AddEventsAppended(aggType, len(committed))
		r.metrics.ObserveSave(aggType, start)
	}

	r.publish(ctx, aggType, committed)
	r.maybeSnapshot(ctx, agg)
	return nil
}

func (r *Repository[A]) publish(ctx context.Context, aggType string, events []event.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, events); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish committed events",
			"aggregate_type", aggType,
			"count", len(events),
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.IncrementPublishFailure(aggType)
		}
		return
	}
	if r.metrics != nil {
		r.metrics.AddEventsPublished(aggType, len(events))
	}
}

func (r *Repository[A]) maybeSnapshot(ctx context.Context, agg A) {
	root := agg.Base()
	if r.snapshots == nil || root.Version()-root.SnapshotVersion() < r.snapshotInterval {
		return
	}
	if _, ok := any(agg).(aggregate.Snapshotter); !ok {
		return
	}
	snap, err := aggregate.CreateSnapshot(agg)
	if err == nil {
		err = r.snapshots.Save(ctx, snap)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "failed to snapshot aggregate",
			"aggregate_type", root.AggregateType(),
			"aggregate_id", root.ID().String(),
			"version", root.Version(),
			"error", err,
		)
		return
	}
	if r.metrics != nil {
		r.metrics.IncrementSnapshot(root.AggregateType())
	}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
