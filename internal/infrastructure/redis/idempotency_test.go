package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-api/pkg/config"
)

func setupTestRedis(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestReserve_ClaveNueva(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	id, reserved, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Zero(t, id)

	val, err := mr.Get("checkout:u1:k1")
	require.NoError(t, err)
	assert.Equal(t, pending, val)
	assert.Equal(t, time.Hour, mr.TTL("checkout:u1:k1"))
}

func TestReserve_EnCurso(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, reserved, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	require.True(t, reserved)

	id, reserved, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Zero(t, id)
}

func TestReserve_Completada(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "u1:k1", 42))

	id, reserved, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, int64(42), id)
}

func TestRelease_PermiteReintento(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "u1:k1"))
	assert.False(t, mr.Exists("checkout:u1:k1"))

	_, reserved, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestReserve_ExpiraConTTL(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, reserved, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestReserve_ValorCorrupto(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("checkout:u1:k1", "not-a-number"))

	_, _, err := store.Reserve(context.Background(), "u1:k1")
	assert.Error(t, err)
}

func TestReserve_RedisCaido(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, _, err := store.Reserve(context.Background(), "u1:k1")
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewClient(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = NewClient(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
