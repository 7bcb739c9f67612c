package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func testSwap(i int) *models.SwapEvent {
	return &models.SwapEvent{
		ExecutionID:  fmt.Sprintf("exec-%d", i),
		TxHash:       fmt.Sprintf("%064x", i),
		Timestamp:    time.Unix(1_700_000_000+int64(i), 0).UTC(),
		Pair:         "ADA-MIN",
		FromAsset:    constants.NativeUnit,
		ToAsset:      constants.TokenUnits["MIN"],
		AmountIn:     "10000000",
		AmountOutMin: "4886432",
		Fee:          180_000,
		Pool:         "addr1pool",
		Wallet:       "addr1wallet",
		Dex:          constants.DexName,
	}
}

func TestChannels(t *testing.T) {
	assert.Equal(t, []string{"swaps:live", "swaps:pair:ADA-MIN", "swaps:dex:Minswap"}, Channels(testSwap(1)))
	assert.Equal(t, []string{"swaps:live"}, Channels(&models.SwapEvent{}))
}

func TestIsPattern(t *testing.T) {
	assert.True(t, isPattern("swaps:pair:*"))
	assert.False(t, isPattern(constants.PubSubChannelSwaps))
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil, nil)
	assert.Error(t, err)
}

func TestRedisStore_RecordAndRecent(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, store.RecordSwap(ctx, testSwap(i)))
	}

	swaps, err := store.RecentSwaps(ctx, 2)
	require.NoError(t, err)
	require.Len(t, swaps, 2)
	assert.Equal(t, "exec-3", swaps[0].ExecutionID)
	assert.Equal(t, "exec-2", swaps[1].ExecutionID)
	assert.Equal(t, uint64(180_000), swaps[0].Fee)
}

func TestRedisStore_RecentIsBounded(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < constants.MaxRecentSwaps+5; i++ {
		require.NoError(t, store.RecordSwap(ctx, testSwap(i)))
	}

	n, err := client.LLen(ctx, constants.RedisKeyRecentSwaps).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(constants.MaxRecentSwaps), n)
}

func TestRedisStore_SkipsMalformed(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.RecordSwap(ctx, testSwap(1)))
	require.NoError(t, client.LPush(ctx, constants.RedisKeyRecentSwaps, "{not json").Err())

	swaps, err := store.RecentSwaps(ctx, 10)
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, "exec-1", swaps[0].ExecutionID)
}

func TestRedisStore_Subscribe(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *models.SwapEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- store.Subscribe(ctx, constants.PubSubPairPrefix+"*", func(s *models.SwapEvent) {
			got <- s
		})
	}()

	// Publish until the subscriber is attached.
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, store.RecordSwap(ctx, testSwap(7)))
		select {
		case s := <-got:
			assert.Equal(t, "exec-7", s.ExecutionID)
			cancel()
			assert.ErrorIs(t, <-done, context.Canceled)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no swap delivered")
		}
	}
}
