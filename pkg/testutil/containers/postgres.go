//go:build integration

package containers

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"regionsync/internal/platform/postgres"
)

// PostgresContainer wraps a testcontainers Postgres instance with the
// regionsync schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and runs the bundled migrations.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("regionsync"),
		tcpostgres.WithUsername("regionsync"),
		tcpostgres.WithPassword("regionsync"),
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

	db, err := postgres.Open(ctx, dsn, postgres.PoolConfig{})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}

	if err := postgres.Migrate(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	// Shared across suites; Ryuk removes the container when the binary exits.
	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// Database opens a separate migrated database on the same server, creating
// it on first use. Suites use one per simulated region.
func (p *PostgresContainer) Database(t *testing.T, name string) *sql.DB {
	t.Helper()

	ctx := context.Background()
	var exists bool
	if err := p.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		t.Fatalf("failed to check database %s: %v", name, err)
	}
	if !exists {
		if _, err := p.DB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
			t.Fatalf("failed to create database %s: %v", name, err)
		}
	}

	u, err := url.Parse(p.DSN)
	if err != nil {
		t.Fatalf("failed to parse dsn: %v", err)
	}
	u.Path = "/" + name
	db, err := postgres.Open(ctx, u.String(), postgres.PoolConfig{})
	if err != nil {
		t.Fatalf("failed to open database %s: %v", name, err)
	}
	if err := postgres.Migrate(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		_ = db.Close()
		t.Fatalf("failed to migrate database %s: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TruncateTables empties the given tables, cascading to dependents.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		quoted = append(quoted, pq.QuoteIdentifier(t))
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE "+strings.Join(quoted, ", ")+" CASCADE")
	return err
}
