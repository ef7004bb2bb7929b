// Package tenant resolves effective connection options by merging per-call
// options over tenant-wide feature flags. Resolutions are cached per
// (tenant, options) pair until explicitly invalidated.
package tenant

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
)

// DefaultTenantID is the fallback configuration bucket for unknown tenants.
const DefaultTenantID = "default"

// DefaultFlags are the flags used when a tenant has no stored config and for
// the default tenant itself.
var DefaultFlags = domain.FeatureFlags{
	CollaborationEnabled:  true,
	ClassificationEnabled: false,
	MaxReconnectAttempts:  5,
	BaseReconnectDelay:    5 * time.Second,
	BackoffFactor:         2.0,
	MaxReconnectDelay:     60 * time.Second,
	QueueCapacity:         16,
}

// Repository is the subset of tenant config persistence used by the
// resolver.
type Repository interface {
	GetByTenantID(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
}

// Resolver merges requested connection options with tenant defaults.
// Lookups never fail: an unknown tenant or a repository error falls back to
// the default flags. Read-mostly; a single RWMutex guards the cache.
type Resolver struct {
	repo Repository

	mu    sync.RWMutex
	cache map[cacheKey]domain.EffectiveOptions
}

type cacheKey struct {
	tenantID string
	optsHash uint64
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{
		repo:  repo,
		cache: make(map[cacheKey]domain.EffectiveOptions),
	}
}

// Resolve produces the effective options for a connection request. Per-call
// options always win over tenant-wide flags.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, opts domain.ConnectionOptions) domain.EffectiveOptions {
	if tenantID == "" {
		tenantID = DefaultTenantID
	}
	key := cacheKey{tenantID: tenantID, optsHash: hashOptions(opts)}

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		metrics.TenantCacheHits.Inc()
		return cached
	}
	metrics.TenantCacheMisses.Inc()

	flags := r.lookupFlags(ctx, tenantID)
	effective := merge(tenantID, flags, opts)

	r.mu.Lock()
	r.cache[key] = effective
	r.mu.Unlock()

	return effective
}

// Invalidate drops every cached resolution for a tenant. The next Resolve
// re-reads the repository. Stale reads between invalidation and the next
// resolution are tolerated.
func (r *Resolver) Invalidate(tenantID string) {
	if tenantID == "" {
		tenantID = DefaultTenantID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cache {
		if key.tenantID == tenantID {
			delete(r.cache, key)
		}
	}
}

func (r *Resolver) lookupFlags(ctx context.Context, tenantID string) domain.FeatureFlags {
	if tenantID == DefaultTenantID || r.repo == nil {
		return DefaultFlags
	}

	cfg, err := r.repo.GetByTenantID(ctx, tenantID)
	if err != nil {
		slog.Warn("Tenant config lookup failed, using defaults", "tenant_id", tenantID, "error", err)
		metrics.TenantFallbacks.Inc()
		return DefaultFlags
	}
	if cfg == nil {
		metrics.TenantFallbacks.Inc()
		return DefaultFlags
	}
	return normalize(cfg.Flags)
}

// normalize fills zero-valued flags with defaults so stored configs may be
// partial.
func normalize(flags domain.FeatureFlags) domain.FeatureFlags {
	if flags.MaxReconnectAttempts <= 0 {
		flags.MaxReconnectAttempts = DefaultFlags.MaxReconnectAttempts
	}
	if flags.BaseReconnectDelay <= 0 {
		flags.BaseReconnectDelay = DefaultFlags.BaseReconnectDelay
	}
	if flags.BackoffFactor <= 0 {
		flags.BackoffFactor = DefaultFlags.BackoffFactor
	}
	if flags.MaxReconnectDelay <= 0 {
		flags.MaxReconnectDelay = DefaultFlags.MaxReconnectDelay
	}
	if flags.QueueCapacity <= 0 {
		flags.QueueCapacity = DefaultFlags.QueueCapacity
	}
	return flags
}

func merge(tenantID string, flags domain.FeatureFlags, opts domain.ConnectionOptions) domain.EffectiveOptions {
	effective := domain.EffectiveOptions{
		TenantID:              tenantID,
		CollaborationEnabled:  flags.CollaborationEnabled,
		ClassificationEnabled: flags.ClassificationEnabled,
		MaxReconnectAttempts:  flags.MaxReconnectAttempts,
		BaseReconnectDelay:    flags.BaseReconnectDelay,
		BackoffFactor:         flags.BackoffFactor,
		MaxReconnectDelay:     flags.MaxReconnectDelay,
		QueueCapacity:         flags.QueueCapacity,
		SecurityToken:         opts.SecurityToken,
	}

	if opts.EnableClassification != nil {
		effective.ClassificationEnabled = *opts.EnableClassification
	}
	if opts.MaxReconnectAttempts > 0 {
		effective.MaxReconnectAttempts = opts.MaxReconnectAttempts
	}
	if opts.BaseReconnectDelay > 0 {
		effective.BaseReconnectDelay = opts.BaseReconnectDelay
	}
	if opts.QueueCapacity > 0 {
		effective.QueueCapacity = opts.QueueCapacity
	}

	return effective
}

func hashOptions(opts domain.ConnectionOptions) uint64 {
	h := fnv.New64a()
	classification := "inherit"
	if opts.EnableClassification != nil {
		classification = fmt.Sprintf("%t", *opts.EnableClassification)
	}
	fmt.Fprintf(h, "%s|%s|%d|%d|%d|%s",
		opts.TenantID,
		classification,
		opts.MaxReconnectAttempts,
		opts.BaseReconnectDelay,
		opts.QueueCapacity,
		opts.SecurityToken,
	)
	return h.Sum64()
}
