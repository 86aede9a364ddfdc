package pending

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ventline:pending:"

// RedisCache stores events outside the process so a poll can be answered by
// any instance sharing the Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Put(ctx context.Context, sessionID string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(sessionID), b, c.ttl).Err()
}

func (c *RedisCache) Take(ctx context.Context, sessionID string) (*Event, error) {
	b, err := c.client.GetDel(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *RedisCache) Delete(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, redisKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}
