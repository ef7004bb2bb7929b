package history

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

var testRedisURL string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	opts, err := goredis.ParseURL(testRedisURL)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	require.NoError(t, client.FlushAll(context.Background()).Err())

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublisherPublishesToTenantChannel(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "history:t1")
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	msg := domain.NewMessage("chat.message", "t1", domain.PriorityNormal,
		json.RawMessage(`{"text":"hello"}`), time.Now())

	p := NewPublisher(client)
	p.MessageDispatched(ctx, "session/abc", msg)

	select {
	case got := <-sub.Channel():
		var env struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(got.Payload), &env))
		assert.Equal(t, msg.ID, env.ID)
		assert.Equal(t, "chat.message", env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("history notification never arrived")
	}
}

func TestPublisherDefaultsTenantChannel(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "history:default")
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	msg := domain.NewMessage("notification", "", domain.PriorityLow, nil, time.Now())

	p := NewPublisher(client)
	p.MessageDispatched(ctx, "session/abc", msg)

	select {
	case got := <-sub.Channel():
		assert.Contains(t, got.Payload, msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("history notification never arrived")
	}
}

func TestPublisherSwallowsPublishFailures(t *testing.T) {
	client := setupTestClient(t)
	require.NoError(t, client.Close())

	msg := domain.NewMessage("chat.message", "t1", domain.PriorityNormal, nil, time.Now())

	p := NewPublisher(client)
	assert.NotPanics(t, func() {
		p.MessageDispatched(context.Background(), "session/abc", msg)
	})
}
