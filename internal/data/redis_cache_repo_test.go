package data

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcoach/partner-api/internal/testutil"
)

func TestRedisCacheRepo_SetGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		key := "partner_auth:" + uuid.NewString()
		value := []byte(`{"key_id": "pk_test_abc", "partner_name": "Acme"}`)
		ttl := 30 * time.Second

		require.NoError(t, repo.Set(ctx, key, value, ttl))

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, got)

		actualTTL := client.TTL(ctx, key).Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("get miss returns nil", func(t *testing.T) {
		got, err := repo.Get(ctx, "partner_auth:"+uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete reports prior existence", func(t *testing.T) {
		key := "partner_auth:" + uuid.NewString()
		require.NoError(t, repo.Set(ctx, key, []byte("x"), time.Minute))

		deleted, err := repo.Delete(ctx, key)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, key)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("exists", func(t *testing.T) {
		key := "partner_auth:" + uuid.NewString()

		ok, err := repo.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, repo.Set(ctx, key, []byte("x"), time.Minute))

		ok, err = repo.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("set if not exists", func(t *testing.T) {
		key := "lock:" + uuid.NewString()

		won, err := repo.SetIfNotExists(ctx, key, []byte("holder-1"), time.Minute)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = repo.SetIfNotExists(ctx, key, []byte("holder-2"), time.Minute)
		require.NoError(t, err)
		assert.False(t, won)

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("holder-1"), got)
	})

	t.Run("set ttl on existing key", func(t *testing.T) {
		key := "partner_auth:" + uuid.NewString()
		require.NoError(t, repo.Set(ctx, key, []byte("x"), time.Hour))

		updated, err := repo.SetTTL(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.True(t, updated)

		actualTTL := client.TTL(ctx, key).Val()
		assert.True(t, actualTTL > 0 && actualTTL <= time.Minute)

		updated, err = repo.SetTTL(ctx, "partner_auth:"+uuid.NewString(), time.Minute)
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("rejects empty key", func(t *testing.T) {
		require.Error(t, repo.Set(ctx, "", []byte("x"), time.Minute))
	})
}

func TestRedisCacheRepo_Health(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	require.NoError(t, repo.Health(context.Background()))
}
