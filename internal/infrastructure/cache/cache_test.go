package cache

import (
	"context"
	"testing"
	"time"

	"LegislativeClipping/internal/config"
)

func TestMemoryCacheExpires(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Hour)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if seen, _ := c.Seen(ctx, "a"); seen {
		t.Fatalf("unmarked key reported as seen")
	}
	if err := c.Mark(ctx, "a"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if seen, _ := c.Seen(ctx, "a"); !seen {
		t.Fatalf("marked key not seen")
	}

	now = now.Add(2 * time.Hour)
	if seen, _ := c.Seen(ctx, "a"); seen {
		t.Fatalf("key should expire after ttl")
	}
}

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisCache(context.Background(), config.CacheConfig{RedisURL: "://nope"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
