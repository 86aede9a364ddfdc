package pending

import (
	"context"
	"testing"
	"time"

	"ventline/internal/config"

	"github.com/redis/go-redis/v9"
)

func openRedis(t *testing.T) *redis.Client {
	t.Helper()
	cfg, err := config.LoadTestRedis()
	if err != nil {
		t.Skipf("skip test redis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.TestRedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip test redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCacheRoundTrip(t *testing.T) {
	client := openRedis(t)
	c := NewRedisCache(client, time.Minute)
	ctx := context.Background()
	id := "test-" + time.Now().Format("150405.000000000")
	defer c.Delete(ctx, id)

	if err := c.Put(ctx, id, Event{CallID: "c1", PartnerID: "b", Duration: 600}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ev, err := c.Take(ctx, id)
	if err != nil || ev == nil || ev.PartnerID != "b" {
		t.Fatalf("take: ev=%+v err=%v", ev, err)
	}
	ev, err = c.Take(ctx, id)
	if err != nil || ev != nil {
		t.Fatalf("second take should be empty, ev=%+v err=%v", ev, err)
	}
}
