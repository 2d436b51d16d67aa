package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCounterStoreIncrementAndExpire(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewCounterStore(client)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "translation_rate_limit:1", 2*time.Minute)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("increment = %d, want %d", got, want)
		}
	}
	if ttl := mr.TTL("translation_rate_limit:1"); ttl != 2*time.Minute {
		t.Fatalf("ttl = %s, want 2m", ttl)
	}

	got, err := store.Get(ctx, "translation_rate_limit:1")
	if err != nil || got != 3 {
		t.Fatalf("get = %d, %v; want 3", got, err)
	}

	mr.FastForward(3 * time.Minute)
	got, err = store.Get(ctx, "translation_rate_limit:1")
	if err != nil || got != 0 {
		t.Fatalf("get after expiry = %d, %v; want 0", got, err)
	}
}

func TestDialFailsWithoutServer(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, addr, "", 0); err == nil {
		t.Fatalf("expected dial error")
	}
}
