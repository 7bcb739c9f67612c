package flags

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func cleanupTestRedis(client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func TestNormalizeScope(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"all", GlobalScope, true},
		{" ALL ", GlobalScope, true},
		{"ada-min", "ADA-MIN", true},
		{"ADA-29d222ce7634", "ADA-29D222CE7634", true},
		{"ADA", "", false},
		{"ADA-MIN-SNEK", "", false},
		{"ADA-", "", false},
		{"ADA_MIN", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeScope(tt.in)
		if !tt.ok {
			assert.ErrorIs(t, err, apperr.ErrInvalidParameters, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestStore_UpsertAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	h, err := store.Upsert(ctx, "ada-min", true, "pool migration")
	require.NoError(t, err)
	assert.Equal(t, "ADA-MIN", h.Scope)
	assert.True(t, h.Active)
	assert.NotZero(t, h.UpdatedAt)

	got, err := store.Get(ctx, "ADA-MIN")
	require.NoError(t, err)
	assert.Equal(t, h.Reason, got.Reason)
	assert.Equal(t, h.UpdatedAt, got.UpdatedAt)

	time.Sleep(time.Millisecond)
	h2, err := store.Upsert(ctx, "ADA-MIN", false, "")
	require.NoError(t, err)
	assert.True(t, h2.UpdatedAt.After(h.UpdatedAt))

	got, err = store.Get(ctx, "ADA-MIN")
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestStore_UpsertRejects(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Upsert(ctx, "not a pair", true, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidParameters)

	_, err = store.Upsert(ctx, "ADA-MIN", true, strings.Repeat("x", maxReasonLen+1))
	assert.ErrorIs(t, err, apperr.ErrInvalidParameters)
}

func TestStore_GetMissing(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	h, err := store.Get(context.Background(), "ADA-SNEK")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, h)
}

func TestStore_DeleteAndList(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	halts, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, halts)

	for _, scope := range []string{"all", "ADA-MIN", "ADA-SNEK"} {
		_, err := store.Upsert(ctx, scope, true, "")
		require.NoError(t, err)
	}

	halts, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, halts, 3)

	require.NoError(t, store.Delete(ctx, "ADA-MIN"))
	_, err = store.Get(ctx, "ADA-MIN")
	assert.ErrorIs(t, err, ErrNotFound)

	halts, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, halts, 2)

	// Deleting a missing halt is not an error.
	assert.NoError(t, store.Delete(ctx, "ADA-HOSKY"))
}

func TestStore_Check(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, store.Check(ctx, "ADA-MIN"))

	_, err = store.Upsert(ctx, "MIN-ADA", true, "oracle drift")
	require.NoError(t, err)

	// Either orientation of the pair is blocked.
	err = store.Check(ctx, "ADA-MIN")
	assert.ErrorIs(t, err, apperr.ErrInvalidParameters)
	assert.Contains(t, err.Error(), "oracle drift")
	assert.Error(t, store.Check(ctx, "MIN-ADA"))
	assert.NoError(t, store.Check(ctx, "ADA-SNEK"))

	// Inactive entries block nothing.
	_, err = store.Upsert(ctx, "MIN-ADA", false, "")
	require.NoError(t, err)
	assert.NoError(t, store.Check(ctx, "ADA-MIN"))

	_, err = store.Upsert(ctx, "all", true, "")
	require.NoError(t, err)
	assert.Error(t, store.Check(ctx, "ADA-SNEK"))
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Upsert(ctx, fmt.Sprintf("ADA-T%d", i), i%2 == 0, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	halts, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, halts, workers)
}
