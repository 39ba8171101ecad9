// Package postgres opens regional databases through the pgx stdlib driver and
// applies the embedded schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig bounds the database/sql pool of one region.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPool is used when a zero PoolConfig is passed.
var DefaultPool = PoolConfig{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute}

// Open connects and pings.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	if pool == (PoolConfig{}) {
		pool = DefaultPool
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// OpenRegions opens one database per region. On failure every database
// opened so far is closed.
func OpenRegions(ctx context.Context, dsns map[string]string, pool PoolConfig) (map[string]*sql.DB, error) {
	names := make([]string, 0, len(dsns))
	for name := range dsns {
		names = append(names, name)
	}
	sort.Strings(names)

	dbs := make(map[string]*sql.DB, len(dsns))
	for _, name := range names {
		db, err := Open(ctx, dsns[name], pool)
		if err != nil {
			_ = CloseAll(dbs)
			return nil, fmt.Errorf("region %s: %w", name, err)
		}
		dbs[name] = db
	}
	return dbs, nil
}

func CloseAll(dbs map[string]*sql.DB) error {
	var errs []error
	for _, db := range dbs {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}
