package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/event"
	"tenantcore/pkg/platform/sentinel"
	txcontext "tenantcore/pkg/platform/tx"
)

// PostgresStore persists snapshots in aggregate_snapshots through
// database/sql. It joins a transaction carried in the context when present.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed snapshot store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, snap aggregate.Snapshot) error {
	query := `
		INSERT INTO aggregate_snapshots (aggregate_id, aggregate_type, version, state, taken_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (aggregate_id) DO UPDATE
		SET aggregate_type = EXCLUDED.aggregate_type,
		    version = EXCLUDED.version,
		    state = EXCLUDED.state,
		    taken_at = EXCLUDED.taken_at,
		    created_at = EXCLUDED.created_at,
		    updated_at = EXCLUDED.updated_at
		WHERE aggregate_snapshots.version <= EXCLUDED.version
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		snap.AggregateID,
		snap.AggregateType,
		snap.Version,
		string(snap.State.JSON()),
		snap.TakenAt,
		nullTime(snap.CreatedAt),
		nullTime(snap.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.AggregateID, err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, aggregateID string) (aggregate.Snapshot, error) {
	query := `
		SELECT aggregate_id, aggregate_type, version, state, taken_at, created_at, updated_at
		FROM aggregate_snapshots
		WHERE aggregate_id = $1
	`
	var (
		snap             aggregate.Snapshot
		state            []byte
		created, updated sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, aggregateID).Scan(
		&snap.AggregateID, &snap.AggregateType, &snap.Version, &state, &snap.TakenAt, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return aggregate.Snapshot{}, fmt.Errorf("snapshot %s: %w", aggregateID, sentinel.ErrNotFound)
	}
	if err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("load snapshot %s: %w", aggregateID, err)
	}
	if snap.State, err = event.PayloadFromJSON(state); err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", aggregateID, err)
	}
	snap.TakenAt = snap.TakenAt.UTC()
	snap.CreatedAt = created.Time.UTC()
	snap.UpdatedAt = updated.Time.UTC()
	return snap, nil
}

// nullTime stores zero timestamps as NULL; rows written before the
// timestamp columns existed read back as zero.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
