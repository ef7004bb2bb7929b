package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

// ErrTenantNotFound is returned when no config row exists for a tenant.
var ErrTenantNotFound = errors.New("tenant config not found")

// TenantConfigRepo persists tenant feature flags.
type TenantConfigRepo struct {
	pool *pgxpool.Pool
}

func NewTenantConfigRepo(pool *pgxpool.Pool) *TenantConfigRepo {
	return &TenantConfigRepo{pool: pool}
}

// GetByTenantID loads the flags for one tenant. Returns ErrTenantNotFound
// for unknown tenants; the resolver maps that to the default config.
func (r *TenantConfigRepo) GetByTenantID(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	const query = `
		SELECT collaboration_enabled, classification_enabled,
		       max_reconnect_attempts, base_reconnect_delay_ms,
		       backoff_factor, max_reconnect_delay_ms, queue_capacity
		FROM tenant_configs
		WHERE tenant_id = $1`

	var (
		flags       domain.FeatureFlags
		baseDelayMs int
		maxDelayMs  int
	)
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&flags.CollaborationEnabled,
		&flags.ClassificationEnabled,
		&flags.MaxReconnectAttempts,
		&baseDelayMs,
		&flags.BackoffFactor,
		&maxDelayMs,
		&flags.QueueCapacity,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant config %s: %w", tenantID, err)
	}

	flags.BaseReconnectDelay = time.Duration(baseDelayMs) * time.Millisecond
	flags.MaxReconnectDelay = time.Duration(maxDelayMs) * time.Millisecond

	return &domain.TenantConfig{TenantID: tenantID, Flags: flags}, nil
}

// Upsert writes the flags for one tenant, creating the row if needed.
func (r *TenantConfigRepo) Upsert(ctx context.Context, cfg domain.TenantConfig) error {
	const query = `
		INSERT INTO tenant_configs (
			tenant_id, collaboration_enabled, classification_enabled,
			max_reconnect_attempts, base_reconnect_delay_ms,
			backoff_factor, max_reconnect_delay_ms, queue_capacity, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			collaboration_enabled   = EXCLUDED.collaboration_enabled,
			classification_enabled  = EXCLUDED.classification_enabled,
			max_reconnect_attempts  = EXCLUDED.max_reconnect_attempts,
			base_reconnect_delay_ms = EXCLUDED.base_reconnect_delay_ms,
			backoff_factor          = EXCLUDED.backoff_factor,
			max_reconnect_delay_ms  = EXCLUDED.max_reconnect_delay_ms,
			queue_capacity          = EXCLUDED.queue_capacity,
			updated_at              = now()`

	_, err := r.pool.Exec(ctx, query,
		cfg.TenantID,
		cfg.Flags.CollaborationEnabled,
		cfg.Flags.ClassificationEnabled,
		cfg.Flags.MaxReconnectAttempts,
		cfg.Flags.BaseReconnectDelay.Milliseconds(),
		cfg.Flags.BackoffFactor,
		cfg.Flags.MaxReconnectDelay.Milliseconds(),
		cfg.Flags.QueueCapacity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant config %s: %w", cfg.TenantID, err)
	}
	return nil
}
