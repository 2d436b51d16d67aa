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

// PostRepo keeps the local snapshot of host posts.
type PostRepo struct{ *Repo }

var _ ports.PostRepository = (*PostRepo)(nil)

func NewPostRepo(db *DB) *PostRepo { return &PostRepo{NewRepo(db)} }

func (r *PostRepo) FindPost(ctx context.Context, id int64) (domain.Post, error) {
	q := r.SQ.Select(
		"id",
		"topic_id",
		"post_number",
		"raw",
		"cooked",
		"topic_title",
		"hidden",
		"deleted_at",
		"updated_at",
	).
		From("posts").
		Where(sq.Eq{"id": id}).
		Limit(1)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return domain.Post{}, fmt.Errorf("build post query: %w", err)
	}

	var p domain.Post
	var deleted sql.NullString
	var updated string
	err = r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(
		&p.ID,
		&p.TopicID,
		&p.PostNumber,
		&p.Raw,
		&p.Cooked,
		&p.TopicTitle,
		&p.Hidden,
		&deleted,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Post{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("scan post %d: %w", id, err)
	}
	if deleted.Valid {
		at := parseTime(deleted.String)
		p.DeletedAt = &at
	}
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// SavePost upserts the snapshot by post id.
func (r *PostRepo) SavePost(ctx context.Context, post domain.Post) error {
	if post.ID <= 0 {
		return fmt.Errorf("save post: id is required")
	}
	updated := post.UpdatedAt
	if updated.IsZero() {
		updated = r.Now()
	}
	var deleted any
	if post.DeletedAt != nil {
		deleted = formatTime(*post.DeletedAt)
	}

	q := r.SQ.Insert("posts").
		Columns("id", "topic_id", "post_number", "raw", "cooked", "topic_title", "hidden", "deleted_at", "updated_at").
		Values(post.ID, post.TopicID, post.PostNumber, post.Raw, post.Cooked, post.TopicTitle, post.Hidden, deleted, formatTime(updated)).
		Suffix("ON CONFLICT(id) DO UPDATE SET topic_id=excluded.topic_id, post_number=excluded.post_number, raw=excluded.raw, cooked=excluded.cooked, topic_title=excluded.topic_title, hidden=excluded.hidden, deleted_at=excluded.deleted_at, updated_at=excluded.updated_at")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build post upsert: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert post %d: %w", post.ID, err)
	}
	return nil
}

func (r *PostRepo) DeletePost(ctx context.Context, id int64) error {
	sqlStr, args, err := r.SQ.Delete("posts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build post delete: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
