package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

type countingRepo struct {
	configs map[string]*domain.TenantConfig
	err     error
	calls   int
}

func (r *countingRepo) GetByTenantID(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.configs[tenantID], nil
}

func boolPtr(b bool) *bool { return &b }

func TestResolveEmptyTenantFallsBackToDefaults(t *testing.T) {
	r := NewResolver(nil)

	effective := r.Resolve(context.Background(), "", domain.ConnectionOptions{})

	assert.Equal(t, DefaultTenantID, effective.TenantID)
	assert.True(t, effective.CollaborationEnabled)
	assert.False(t, effective.ClassificationEnabled)
	assert.Equal(t, DefaultFlags.MaxReconnectAttempts, effective.MaxReconnectAttempts)
	assert.Equal(t, DefaultFlags.QueueCapacity, effective.QueueCapacity)
}

func TestResolveUnknownTenantAndRepoErrorNeverFail(t *testing.T) {
	repo := &countingRepo{err: errors.New("database down")}
	r := NewResolver(repo)

	effective := r.Resolve(context.Background(), "t1", domain.ConnectionOptions{})

	assert.Equal(t, "t1", effective.TenantID)
	assert.Equal(t, DefaultFlags.BaseReconnectDelay, effective.BaseReconnectDelay)
	assert.True(t, effective.CollaborationEnabled)
}

func TestResolveMergesTenantFlags(t *testing.T) {
	repo := &countingRepo{configs: map[string]*domain.TenantConfig{
		"t1": {TenantID: "t1", Flags: domain.FeatureFlags{
			CollaborationEnabled:  true,
			ClassificationEnabled: true,
			MaxReconnectAttempts:  7,
			BaseReconnectDelay:    2 * time.Second,
			BackoffFactor:         1.5,
			MaxReconnectDelay:     30 * time.Second,
			QueueCapacity:         32,
		}},
	}}
	r := NewResolver(repo)

	effective := r.Resolve(context.Background(), "t1", domain.ConnectionOptions{})

	assert.True(t, effective.ClassificationEnabled)
	assert.Equal(t, 7, effective.MaxReconnectAttempts)
	assert.Equal(t, 2*time.Second, effective.BaseReconnectDelay)
	assert.Equal(t, 1.5, effective.BackoffFactor)
	assert.Equal(t, 32, effective.QueueCapacity)
}

func TestResolvePerCallOptionsWinOverTenantFlags(t *testing.T) {
	repo := &countingRepo{configs: map[string]*domain.TenantConfig{
		"t1": {TenantID: "t1", Flags: domain.FeatureFlags{
			CollaborationEnabled:  true,
			ClassificationEnabled: true,
			MaxReconnectAttempts:  7,
			QueueCapacity:         32,
		}},
	}}
	r := NewResolver(repo)

	effective := r.Resolve(context.Background(), "t1", domain.ConnectionOptions{
		EnableClassification: boolPtr(false),
		MaxReconnectAttempts: 2,
		BaseReconnectDelay:   time.Second,
		QueueCapacity:        4,
		SecurityToken:        "tok",
	})

	// An explicit false beats a tenant-wide true.
	assert.False(t, effective.ClassificationEnabled)
	assert.Equal(t, 2, effective.MaxReconnectAttempts)
	assert.Equal(t, time.Second, effective.BaseReconnectDelay)
	assert.Equal(t, 4, effective.QueueCapacity)
	assert.Equal(t, "tok", effective.SecurityToken)
}

func TestResolveNormalizesPartialConfigs(t *testing.T) {
	repo := &countingRepo{configs: map[string]*domain.TenantConfig{
		"t1": {TenantID: "t1", Flags: domain.FeatureFlags{
			CollaborationEnabled: true,
			MaxReconnectAttempts: 3,
			// Everything else left zero on purpose.
		}},
	}}
	r := NewResolver(repo)

	effective := r.Resolve(context.Background(), "t1", domain.ConnectionOptions{})

	assert.Equal(t, 3, effective.MaxReconnectAttempts)
	assert.Equal(t, DefaultFlags.BaseReconnectDelay, effective.BaseReconnectDelay)
	assert.Equal(t, DefaultFlags.BackoffFactor, effective.BackoffFactor)
	assert.Equal(t, DefaultFlags.MaxReconnectDelay, effective.MaxReconnectDelay)
	assert.Equal(t, DefaultFlags.QueueCapacity, effective.QueueCapacity)
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	repo := &countingRepo{configs: map[string]*domain.TenantConfig{
		"t1": {TenantID: "t1", Flags: domain.FeatureFlags{
			CollaborationEnabled: true,
			QueueCapacity:        8,
		}},
	}}
	r := NewResolver(repo)

	opts := domain.ConnectionOptions{}
	first := r.Resolve(context.Background(), "t1", opts)
	second := r.Resolve(context.Background(), "t1", opts)
	require.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls, "second resolve must come from the cache")

	// A config change is invisible until the cache is invalidated.
	repo.configs["t1"].Flags.QueueCapacity = 64
	stale := r.Resolve(context.Background(), "t1", opts)
	assert.Equal(t, 8, stale.QueueCapacity)

	r.Invalidate("t1")
	fresh := r.Resolve(context.Background(), "t1", opts)
	assert.Equal(t, 64, fresh.QueueCapacity)
	assert.Equal(t, 2, repo.calls)
}

func TestResolveDistinctOptionsGetDistinctCacheEntries(t *testing.T) {
	repo := &countingRepo{configs: map[string]*domain.TenantConfig{
		"t1": {TenantID: "t1", Flags: domain.FeatureFlags{CollaborationEnabled: true}},
	}}
	r := NewResolver(repo)

	plain := r.Resolve(context.Background(), "t1", domain.ConnectionOptions{})
	tuned := r.Resolve(context.Background(), "t1", domain.ConnectionOptions{QueueCapacity: 4})

	assert.NotEqual(t, plain.QueueCapacity, tuned.QueueCapacity)
	assert.Equal(t, 2, repo.calls)
}

func TestInvalidateScopesToOneTenant(t *testing.T) {
	repo := &countingRepo{configs: map[string]*domain.TenantConfig{
		"t1": {TenantID: "t1", Flags: domain.FeatureFlags{CollaborationEnabled: true}},
		"t2": {TenantID: "t2", Flags: domain.FeatureFlags{CollaborationEnabled: true}},
	}}
	r := NewResolver(repo)

	r.Resolve(context.Background(), "t1", domain.ConnectionOptions{})
	r.Resolve(context.Background(), "t2", domain.ConnectionOptions{})
	require.Equal(t, 2, repo.calls)

	r.Invalidate("t1")

	r.Resolve(context.Background(), "t2", domain.ConnectionOptions{})
	assert.Equal(t, 2, repo.calls, "t2 must still be cached")
	r.Resolve(context.Background(), "t1", domain.ConnectionOptions{})
	assert.Equal(t, 3, repo.calls)
}
