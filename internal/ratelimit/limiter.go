// Package ratelimit implements the fixed one-minute window that guards
// outbound provider calls.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"PostTranslator/internal/ports"
)

const (
	windowSize = 60 * time.Second
	// counterTTL outlives the window so a late read of the previous minute still sees its count.
	counterTTL = 120 * time.Second
	keyPrefix  = "translation_rate_limit"
)

// Unlimited is reported by RemainingRequests when limiting is disabled.
const Unlimited = math.MaxInt

// Limiter counts provider requests per fixed minute window in a shared store.
// Check and record are separate calls, so concurrent workers may overshoot the
// limit by the number of in-flight checks.
type Limiter struct {
	store  ports.CounterStore
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New builds a limiter allowing limit requests per minute; limit <= 0 disables it.
func New(store ports.CounterStore, limit int, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  limit,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured requests per minute.
func (l *Limiter) Limit() int {
	return l.limit
}

// CanMakeRequest reports whether the current window still has capacity.
// Store read failures are logged and treated as capacity available.
func (l *Limiter) CanMakeRequest(ctx context.Context) bool {
	if l.disabled() {
		return true
	}

	count, err := l.store.Get(ctx, l.currentKey())
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, allowing request", "error", err)
		return true
	}
	return count < int64(l.limit)
}

// RecordRequest increments the current window counter and refreshes its expiry.
func (l *Limiter) RecordRequest(ctx context.Context) error {
	if l.disabled() {
		return nil
	}

	if _, err := l.store.Increment(ctx, l.currentKey(), counterTTL); err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

// RemainingRequests returns the capacity left in the current window.
func (l *Limiter) RemainingRequests(ctx context.Context) int {
	if l.disabled() {
		return Unlimited
	}

	count, err := l.store.Get(ctx, l.currentKey())
	if err != nil {
		l.logger.Warn("rate limit counter unavailable", "error", err)
		return l.limit
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *Limiter) disabled() bool {
	return l.limit <= 0 || l.store == nil
}

func (l *Limiter) currentKey() string {
	return WindowKey(l.now())
}

// WindowKey names the counter for the minute containing t.
func WindowKey(t time.Time) string {
	return fmt.Sprintf("%s:%d", keyPrefix, t.Unix()/int64(windowSize/time.Second))
}
