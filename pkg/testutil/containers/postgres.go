//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"tenantcore/internal/platform/config"
	"tenantcore/internal/platform/postgres"
)

// PostgresContainer wraps a migrated testcontainers Postgres instance with
// both handle types the stores use.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts Postgres and applies the embedded migrations.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("tenantcore"),
		tcpostgres.WithUsername("tenantcore"),
		tcpostgres.WithPassword("tenantcore"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	cfg := config.DatabaseConfig{DSN: dsn, MaxConns: 10, MinConns: 1}
	db, err := postgres.OpenDB(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := postgres.Migrate(ctx, db, slog.Default()); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to create pgx pool: %v", err)
	}

	// No t.Cleanup: the container is shared through the Manager.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
		Pool:      pool,
	}
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", strings.Join(tables, ", ")))
	return err
}
