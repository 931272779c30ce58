package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/pie/pkg/adapters/redis"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunResultStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	view := &domain.ResultView{Key: "ttl", FragmentID: 0, Values: map[domain.VertexID]any{1: 1}}

	require.NoError(t, store.Publish(ctx, view))

	keys, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, keys, "ttl")

	// Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "ttl")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)

	// The index is pruned against the wall clock.
	time.Sleep(1200 * time.Millisecond)

	keys, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Publish(ctx, &domain.ResultView{Key: "components", FragmentID: 2})
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:components"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")
	fields, err := mr.HKeys("custom:app:components")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, fields)

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, "components")
}
