package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

const translationsTable = "post_translations"

var translationColumns = []string{
	"id",
	"post_id",
	"language",
	"translated_content",
	"translated_title",
	"source_language",
	"translation_provider",
	"status",
	"metadata",
	"created_at",
	"updated_at",
}

// TranslationRepo persists post translations, unique per (post_id, language).
type TranslationRepo struct{ *Repo }

var _ ports.TranslationRepository = (*TranslationRepo)(nil)

func NewTranslationRepo(db *DB) *TranslationRepo { return &TranslationRepo{NewRepo(db)} }

func (r *TranslationRepo) Find(ctx context.Context, postID int64, language string) (domain.Translation, error) {
	q := r.SQ.Select(translationColumns...).
		From(translationsTable).
		Where(sq.Eq{"post_id": postID, "language": language}).
		Limit(1)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return domain.Translation{}, fmt.Errorf("build translation query: %w", err)
	}
	t, err := scanTranslation(r.DB.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Translation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Translation{}, fmt.Errorf("scan translation: %w", err)
	}
	return t, nil
}

// Create inserts a new record and fills in its id and timestamps. A second
// record for the same (post, language) yields domain.ErrDuplicateTranslation.
func (r *TranslationRepo) Create(ctx context.Context, t *domain.Translation) error {
	if err := t.Validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	now := r.Now().UTC()

	q := r.SQ.Insert(translationsTable).
		Columns(translationColumns[1:]...).
		Values(
			t.PostID,
			t.Language,
			t.TranslatedContent,
			t.TranslatedTitle,
			t.SourceLanguage,
			t.Provider,
			string(t.Status),
			string(meta),
			formatTime(now),
			formatTime(now),
		).
		Suffix("RETURNING id")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build translation insert: %w", err)
	}

	var id int64
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTranslation
		}
		return fmt.Errorf("insert translation: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// Update writes every mutable column of an existing record.
func (r *TranslationRepo) Update(ctx context.Context, t *domain.Translation) error {
	if err := t.Validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	now := r.Now().UTC()

	q := r.SQ.Update(translationsTable).
		SetMap(map[string]any{
			"translated_content":   t.TranslatedContent,
			"translated_title":     t.TranslatedTitle,
			"source_language":      t.SourceLanguage,
			"translation_provider": t.Provider,
			"status":               string(t.Status),
			"metadata":             string(meta),
			"updated_at":           formatTime(now),
		}).
		Where(sq.Eq{"post_id": t.PostID, "language": t.Language})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build translation update: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update translation: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// ListByPost returns the post's translations, most recently updated first.
func (r *TranslationRepo) ListByPost(ctx context.Context, postID int64) ([]domain.Translation, error) {
	q := r.SQ.Select(translationColumns...).
		From(translationsTable).
		Where(sq.Eq{"post_id": postID}).
		OrderBy("updated_at DESC", "id DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build translation list: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query translations: %w", err)
	}
	defer rows.Close()

	var out []domain.Translation
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan translation: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *TranslationRepo) Languages(ctx context.Context, postID int64) ([]string, error) {
	q := r.SQ.Select("language").
		From(translationsTable).
		Where(sq.Eq{"post_id": postID}).
		OrderBy("language")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build language list: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query languages: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var language string
		if err := rows.Scan(&language); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		out = append(out, language)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *TranslationRepo) Delete(ctx context.Context, postID int64, language string) error {
	sqlStr, args, err := r.SQ.Delete(translationsTable).
		Where(sq.Eq{"post_id": postID, "language": language}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build translation delete: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete translation: %w", err)
	}
	return expectAffected(res)
}

func (r *TranslationRepo) DeleteByPost(ctx context.Context, postID int64) error {
	sqlStr, args, err := r.SQ.Delete(translationsTable).Where(sq.Eq{"post_id": postID}).ToSql()
	if err != nil {
		return fmt.Errorf("build translation delete: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete translations of post %d: %w", postID, err)
	}
	return nil
}

func scanTranslation(row rowScanner) (domain.Translation, error) {
	var t domain.Translation
	var status, meta, created, updated string
	if err := row.Scan(
		&t.ID,
		&t.PostID,
		&t.Language,
		&t.TranslatedContent,
		&t.TranslatedTitle,
		&t.SourceLanguage,
		&t.Provider,
		&status,
		&meta,
		&created,
		&updated,
	); err != nil {
		return domain.Translation{}, err
	}
	t.Status = domain.TranslationStatus(status)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
			return domain.Translation{}, fmt.Errorf("decode metadata of translation %d: %w", t.ID, err)
		}
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}
