package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiterWindow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, time.March, 1, 10, 0, 5, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	limiter := New(store, 3, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.CanMakeRequest(ctx) {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if err := limiter.RecordRequest(ctx); err != nil {
			t.Fatalf("RecordRequest: %v", err)
		}
	}

	if limiter.CanMakeRequest(ctx) {
		t.Fatalf("fourth request in the same window must be refused")
	}
	if got := limiter.RemainingRequests(ctx); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}

	clock.Advance(60 * time.Second)

	if !limiter.CanMakeRequest(ctx) {
		t.Fatalf("request in the next window must be allowed")
	}
	if got := limiter.RemainingRequests(ctx); got != 3 {
		t.Fatalf("expected full capacity in new window, got %d", got)
	}
}

func TestLimiterWindowBoundaryIsFixed(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, time.March, 1, 10, 0, 59, 0, time.UTC)}
	limiter := New(NewMemoryStore(clock.Now), 1, WithClock(clock.Now))
	ctx := context.Background()

	if err := limiter.RecordRequest(ctx); err != nil {
		t.Fatalf("RecordRequest: %v", err)
	}
	if limiter.CanMakeRequest(ctx) {
		t.Fatalf("limit reached within the window")
	}

	clock.Advance(time.Second)
	if !limiter.CanMakeRequest(ctx) {
		t.Fatalf("a new minute starts a new window")
	}
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil)
	limiter := New(store, 0)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !limiter.CanMakeRequest(ctx) {
			t.Fatalf("disabled limiter must always allow")
		}
		if err := limiter.RecordRequest(ctx); err != nil {
			t.Fatalf("RecordRequest: %v", err)
		}
	}

	if got := limiter.RemainingRequests(ctx); got != Unlimited {
		t.Fatalf("expected Unlimited, got %d", got)
	}
	if n, _ := store.Get(ctx, WindowKey(time.Now())); n != 0 {
		t.Fatalf("disabled limiter must not touch the store, got %d", n)
	}
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func (failingStore) Get(context.Context, string) (int64, error) {
	return 0, errors.New("store down")
}

func TestLimiterFailsOpen(t *testing.T) {
	t.Parallel()

	limiter := New(failingStore{}, 1)
	ctx := context.Background()

	if !limiter.CanMakeRequest(ctx) {
		t.Fatalf("store failure must not block requests")
	}
	if err := limiter.RecordRequest(ctx); err == nil {
		t.Fatalf("expected record error")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	if n, _ := store.Increment(ctx, "k", 2*time.Minute); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	if n, _ := store.Increment(ctx, "k", 2*time.Minute); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}

	clock.Advance(2 * time.Minute)
	if n, _ := store.Get(ctx, "k"); n != 0 {
		t.Fatalf("expired counter must read as zero, got %d", n)
	}
	if n, _ := store.Increment(ctx, "k", time.Minute); n != 1 {
		t.Fatalf("expired counter must restart, got %d", n)
	}
}

func TestWindowKey(t *testing.T) {
	t.Parallel()

	at := time.Unix(120, 0)
	if got := WindowKey(at); got != "translation_rate_limit:2" {
		t.Fatalf("unexpected key %s", got)
	}
	if WindowKey(at.Add(59*time.Second)) != WindowKey(at) {
		t.Fatalf("same minute must share a key")
	}
}
