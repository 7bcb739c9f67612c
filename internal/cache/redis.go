package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps the recent-swaps list and fans submitted swaps out over
// Pub/Sub.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
}

// DialRedis connects to addr and fails fast when the server is unreachable.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, logger *logrus.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStore{client: client, logger: logger}, nil
}

// Channels lists every channel a swap is published to.
func Channels(swap *models.SwapEvent) []string {
	channels := []string{constants.PubSubChannelSwaps}
	if swap.Pair != "" {
		channels = append(channels, constants.PubSubPairPrefix+swap.Pair)
	}
	if swap.Dex != "" {
		channels = append(channels, constants.PubSubDexPrefix+swap.Dex)
	}
	return channels
}

// RecordSwap pushes the swap onto the bounded recent list and publishes it,
// all in one pipeline.
func (r *RedisStore) RecordSwap(ctx context.Context, swap *models.SwapEvent) error {
	data, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("marshal swap: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentSwaps, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentSwaps, 0, constants.MaxRecentSwaps-1)
	for _, channel := range Channels(swap) {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record swap %s: %w", swap.TxHash, err)
	}
	return nil
}

// RecentSwaps returns up to limit swaps, newest first.
func (r *RedisStore) RecentSwaps(ctx context.Context, limit int64) ([]*models.SwapEvent, error) {
	if limit <= 0 || limit > constants.MaxRecentSwaps {
		limit = constants.MaxRecentSwaps
	}

	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentSwaps, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent swaps: %w", err)
	}

	out := make([]*models.SwapEvent, 0, len(vals))
	for _, v := range vals {
		var swap models.SwapEvent
		if err := json.Unmarshal([]byte(v), &swap); err != nil {
			r.logger.WithError(err).Warn("skipping malformed recent swap")
			continue
		}
		out = append(out, &swap)
	}
	return out, nil
}

// Subscribe delivers swaps published on channel until ctx is cancelled.
// A pattern such as "swaps:pair:*" subscribes with PSUBSCRIBE.
func (r *RedisStore) Subscribe(ctx context.Context, channel string, handler func(*models.SwapEvent)) error {
	var pubsub *redis.PubSub
	if isPattern(channel) {
		pubsub = r.client.PSubscribe(ctx, channel)
	} else {
		pubsub = r.client.Subscribe(ctx, channel)
	}
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	r.logger.WithField("channel", channel).Info("subscribed to swap channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var swap models.SwapEvent
			if err := json.Unmarshal([]byte(msg.Payload), &swap); err != nil {
				r.logger.WithError(err).WithField("channel", msg.Channel).Warn("error unmarshaling swap")
				continue
			}
			handler(&swap)
		}
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func isPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}
