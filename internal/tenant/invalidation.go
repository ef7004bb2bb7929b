package tenant

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

const invalidationChannel = "tenant:invalidate"

// InvalidationSubscriber listens for cross-instance tenant config
// invalidations published over Redis and drops the matching cache entries.
type InvalidationSubscriber struct {
	rdb      *goredis.Client
	resolver *Resolver
}

func NewInvalidationSubscriber(rdb *goredis.Client, resolver *Resolver) *InvalidationSubscriber {
	return &InvalidationSubscriber{rdb: rdb, resolver: resolver}
}

// Start blocks until ctx is cancelled, applying invalidations as they
// arrive. Run it in its own goroutine.
func (s *InvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, invalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			if msg.Payload == "" {
				slog.Warn("Empty tenant invalidation message")
				continue
			}
			s.resolver.Invalidate(msg.Payload)
			slog.Debug("Tenant config invalidated via pub/sub", "tenant_id", msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

// Invalidator composes local cache invalidation with the cross-instance
// fan-out.
type Invalidator struct {
	resolver *Resolver
	rdb      *goredis.Client
}

func NewInvalidator(resolver *Resolver, rdb *goredis.Client) *Invalidator {
	return &Invalidator{resolver: resolver, rdb: rdb}
}

// InvalidateTenant drops local cached resolutions and notifies peers. The
// fan-out is best effort; peers converge on their next repository read.
func (i *Invalidator) InvalidateTenant(ctx context.Context, tenantID string) {
	i.resolver.Invalidate(tenantID)
	if i.rdb == nil {
		return
	}
	if err := PublishInvalidation(ctx, i.rdb, tenantID); err != nil {
		slog.Warn("Failed to publish tenant invalidation", "tenant_id", tenantID, "error", err)
	}
}

// PublishInvalidation notifies every instance that a tenant's config
// changed.
func PublishInvalidation(ctx context.Context, rdb *goredis.Client, tenantID string) error {
	if err := rdb.Publish(ctx, invalidationChannel, tenantID).Err(); err != nil {
		return fmt.Errorf("failed to publish tenant invalidation: %w", err)
	}
	return nil
}
