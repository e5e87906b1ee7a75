package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smertin-nikita/market/internal/domain"
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, ownerID int64) (*domain.Order, error) {
	key := cacheKey(ownerID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var order domain.Order
	if err2 := json.Unmarshal(data, &order); err2 != nil {
		return nil, fmt.Errorf("unmarshal basket failed: %w", err2)
	}

	return &order, nil
}

func (r *RedisCache) Set(ctx context.Context, ownerID int64, order *domain.Order) error {
	key := cacheKey(ownerID)
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal basket failed: %w", err)
	}

	// Jitter spreads expirations so a burst of baskets does not fall out
	// of the cache at once.
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, key, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, ownerID int64) error {
	if err := r.client.Del(ctx, cacheKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(ownerID int64) string {
	return fmt.Sprintf("basket:%d", ownerID)
}
