package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"dealdesk/migrations"
)

// DB bundles the two database handles the server uses: a pgx pool for
// the hot-path stores and a database/sql handle for the audit store and
// goose migrations.
type DB struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Connect opens both handles, pings them, and applies pending
// migrations.
func Connect(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	sqlDB, err := sql.Open("postgres", url)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open sql handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		pool.Close()
		sqlDB.Close()
		return nil, fmt.Errorf("ping sql handle: %w", err)
	}

	if err := migrations.Up(sqlDB); err != nil {
		pool.Close()
		sqlDB.Close()
		return nil, err
	}

	return &DB{Pool: pool, SQL: sqlDB}, nil
}

// Health checks the pool connection.
func (d *DB) Health(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close releases both handles.
func (d *DB) Close() {
	d.Pool.Close()
	d.SQL.Close()
}
