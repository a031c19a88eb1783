package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantcore/pkg/domain"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/platform/sentinel"
)

const eventsTable = "domain_events"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore persists streams in the domain_events table. The primary key
// (aggregate_id, version) is the final arbiter of concurrent appends.
type PostgresStore struct {
	pool *pgxpool.Pool
	ids  *domain.Interner
}

// NewPostgres constructs a PostgreSQL-backed event store. Loaded identities
// are interned through ids.
func NewPostgres(pool *pgxpool.Pool, ids *domain.Interner) *PostgresStore {
	if ids == nil {
		ids = domain.Default()
	}
	return &PostgresStore{pool: pool, ids: ids}
}

func (s *PostgresStore) Append(ctx context.Context, aggregateID *domain.Identity, expectedVersion int64, events []event.Event) error {
	if err := checkBatch(aggregateID, expectedVersion, events); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	insert := psql.Insert(eventsTable).Columns(
		"aggregate_id", "version", "event_id", "aggregate_type",
		"event_type", "occurred_at", "isolation", "data",
	)
	for _, e := range events {
		rec := event.ToRecord(e)
		var scope []byte
		if rec.Isolation != nil {
			raw, err := json.Marshal(rec.Isolation)
			if err != nil {
				return fmt.Errorf("encode isolation for %s: %w", rec.ID, err)
			}
			scope = raw
		}
		insert = insert.Values(
			rec.AggregateID, rec.Version, rec.ID, rec.AggregateType,
			rec.Type, rec.OccurredAt, scope, rec.Data.JSON(),
		)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build append query: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM domain_events WHERE aggregate_id = $1`,
		aggregateID.String(),
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("read stream version %s: %w", aggregateID, err)
	}
	if current != expectedVersion {
		return fmt.Errorf("append %s: expected version %d, stored %d: %w",
			aggregateID, expectedVersion, current, sentinel.ErrConflict)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return mapError(err, aggregateID)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, aggregateID)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, aggregateID *domain.Identity, afterVersion int64) ([]event.Event, error) {
	query, args, err := psql.Select(
		"event_id::text", "occurred_at", "aggregate_id::text", "aggregate_type",
		"version", "isolation", "event_type", "data",
	).
		From(eventsTable).
		Where(sq.Eq{"aggregate_id": aggregateID.String()}).
		Where(sq.Gt{"version": afterVersion}).
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, aggregateID)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var (
			rec   event.Record
			scope []byte
			data  []byte
		)
		if err := rows.Scan(&rec.ID, &rec.OccurredAt, &rec.AggregateID, &rec.AggregateType,
			&rec.Version, &scope, &rec.Type, &data); err != nil {
			return nil, fmt.Errorf("scan event of %s: %w", aggregateID, err)
		}
		if len(scope) > 0 {
			var claims isolation.Claims
			if err := json.Unmarshal(scope, &claims); err != nil {
				return nil, fmt.Errorf("decode isolation of %s: %w", rec.ID, err)
			}
			rec.Isolation = &claims
		}
		if rec.Data, err = event.PayloadFromJSON(data); err != nil {
			return nil, fmt.Errorf("decode data of %s: %w", rec.ID, err)
		}
		e, err := event.FromRecord(s.ids, rec)
		if err != nil {
			return nil, fmt.Errorf("rebuild event %s: %w", rec.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, aggregateID)
	}
	return events, nil
}

// mapError converts pgx errors to sentinel errors. Context errors pass
// through unchanged.
func mapError(err error, aggregateID *domain.Identity) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("stream %s: %w", aggregateID, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("stream %s: %w", aggregateID, sentinel.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation: a concurrent writer took the version
			return fmt.Errorf("stream %s: %w", aggregateID, sentinel.ErrConflict)
		case "08000", "08003", "08006", "57P01": // connection failures, admin shutdown
			return fmt.Errorf("stream %s: %w", aggregateID, sentinel.ErrUnavailable)
		}
	}
	return fmt.Errorf("stream %s: %w", aggregateID, err)
}
