package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

// PreferenceRepo stores one language preference per user.
type PreferenceRepo struct{ *Repo }

var _ ports.PreferenceRepository = (*PreferenceRepo)(nil)

func NewPreferenceRepo(db *DB) *PreferenceRepo { return &PreferenceRepo{NewRepo(db)} }

func (r *PreferenceRepo) FindPreference(ctx context.Context, userID int64) (domain.UserLanguagePreference, error) {
	q := r.SQ.Select("user_id", "language", "enabled", "created_at", "updated_at").
		From("user_language_preferences").
		Where(sq.Eq{"user_id": userID}).
		Limit(1)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return domain.UserLanguagePreference{}, fmt.Errorf("build preference query: %w", err)
	}

	var p domain.UserLanguagePreference
	var language sql.NullString
	var created, updated string
	err = r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&p.UserID, &language, &p.Enabled, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserLanguagePreference{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.UserLanguagePreference{}, fmt.Errorf("scan preference: %w", err)
	}
	if language.Valid {
		v := language.String
		p.Language = &v
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// SavePreference upserts by user id after validating the language code.
func (r *PreferenceRepo) SavePreference(ctx context.Context, pref *domain.UserLanguagePreference) error {
	if pref.UserID <= 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidPreference)
	}
	var language any
	if pref.Language != nil {
		if !domain.ValidLanguageCode(*pref.Language) {
			return fmt.Errorf("%w: language %q", domain.ErrInvalidPreference, *pref.Language)
		}
		language = *pref.Language
	}
	now := r.Now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now

	q := r.SQ.Insert("user_language_preferences").
		Columns("user_id", "language", "enabled", "created_at", "updated_at").
		Values(pref.UserID, language, pref.Enabled, formatTime(pref.CreatedAt), formatTime(now)).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET language=excluded.language, enabled=excluded.enabled, updated_at=excluded.updated_at")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build preference upsert: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert preference of user %d: %w", pref.UserID, err)
	}
	return nil
}
