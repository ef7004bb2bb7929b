// Package postgres provides the pgx-backed tenant config repository.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// EnsureSchema creates the tenant config table if it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS tenant_configs (
			tenant_id               TEXT PRIMARY KEY,
			collaboration_enabled   BOOLEAN NOT NULL DEFAULT TRUE,
			classification_enabled  BOOLEAN NOT NULL DEFAULT FALSE,
			max_reconnect_attempts  INTEGER NOT NULL DEFAULT 5,
			base_reconnect_delay_ms INTEGER NOT NULL DEFAULT 5000,
			backoff_factor          DOUBLE PRECISION NOT NULL DEFAULT 2.0,
			max_reconnect_delay_ms  INTEGER NOT NULL DEFAULT 60000,
			queue_capacity          INTEGER NOT NULL DEFAULT 16,
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure tenant_configs schema: %w", err)
	}
	return nil
}
