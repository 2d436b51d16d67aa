package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PostTranslator/internal/ports"
)

const countersTable = "rate_limit_counters"

// CounterStore keeps rate-limit windows in the shared database so every
// process sees the same count.
type CounterStore struct{ *Repo }

var (
	_ ports.CounterStore  = (*CounterStore)(nil)
	_ ports.CounterPurger = (*CounterStore)(nil)
)

func NewCounterStore(db *DB) *CounterStore { return &CounterStore{NewRepo(db)} }

// Increment atomically bumps key and refreshes its expiry. An expired row
// restarts at one.
func (s *CounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.Now().UTC()
	expires := now.Add(ttl).Unix()

	q := s.SQ.Insert(countersTable).
		Columns("key", "count", "expires_at").
		Values(key, 1, expires).
		Suffix("ON CONFLICT(key) DO UPDATE SET count = CASE WHEN "+countersTable+".expires_at <= ? THEN 1 ELSE "+countersTable+".count + 1 END, expires_at = excluded.expires_at RETURNING count", now.Unix())
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build counter upsert: %w", err)
	}
	var count int64
	if err := s.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return count, nil
}

// Get returns the live count for key, zero when absent or expired.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, error) {
	q := s.SQ.Select("count").
		From(countersTable).
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"expires_at": s.Now().UTC().Unix()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build counter query: %w", err)
	}
	var count int64
	err = s.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	return count, nil
}

// PurgeExpired deletes counters whose expiry is at or before now.
func (s *CounterStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	sqlStr, args, err := s.SQ.Delete(countersTable).Where(sq.LtOrEq{"expires_at": now.UTC().Unix()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build counter purge: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("purge counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
