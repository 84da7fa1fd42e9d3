package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"Portfolio/internal/model"
)

// DraftRepository реализует доступ к таблице blog_drafts
type DraftRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewDraftRepository создаёт репозиторий черновиков блога
func NewDraftRepository(db *sql.DB) *DraftRepository {
	return &DraftRepository{db: db, now: time.Now}
}

const draftColumns = `id, title, slug, content, canonical_url, source, author, tags, quality, status,
	publish_date, notes, metadata, created_at, updated_at`

func scanDraft(s scanner) (*model.BlogDraft, error) {
	var d model.BlogDraft
	var status string
	var meta []byte
	err := s.Scan(&d.ID, &d.Title, &d.Slug, &d.Content, &d.CanonicalURL, &d.Source, &d.Author,
		pq.Array(&d.Tags), &d.Quality, &status, &d.PublishDate, &d.Notes, &meta, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = model.DraftStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode draft metadata: %w", err)
		}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

// UpsertDraft создаёт черновик или обновляет существующий с тем же slug.
// Статус, заметки и просмотры существующего черновика не меняются
func (r *DraftRepository) UpsertDraft(ctx context.Context, d model.BlogDraft) (model.SyncAction, *model.BlogDraft, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	now := r.now().UnixMilli()
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode draft metadata: %w", err)
	}
	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM blog_drafts WHERE slug=$1 FOR UPDATE`, d.Slug).Scan(&id)
	action := model.SyncUpdated
	switch {
	case err == sql.ErrNoRows:
		action = model.SyncCreated
		if d.Status == "" {
			d.Status = model.DraftNew
		}
		err = tx.QueryRowContext(ctx, `INSERT INTO blog_drafts(title, slug, content, canonical_url, source, author,
			tags, quality, status, publish_date, notes, metadata, created_at, updated_at)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
			d.Title, d.Slug, d.Content, d.CanonicalURL, d.Source, d.Author, pq.Array(d.Tags), d.Quality,
			string(d.Status), d.PublishDate, d.Notes, meta, now, now).Scan(&id)
		if err != nil {
			return "", nil, fmt.Errorf("failed to insert draft: %w", err)
		}
		d.CreatedAt = now
	case err != nil:
		return "", nil, fmt.Errorf("failed to select draft: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `UPDATE blog_drafts SET title=$1, content=$2, canonical_url=$3, source=$4,
			author=$5, tags=$6, quality=$7, publish_date=$8,
			metadata=jsonb_set(COALESCE(metadata, '{}'::jsonb), '{readTime}', to_jsonb($9::int)), updated_at=$10
			WHERE id=$11`,
			d.Title, d.Content, d.CanonicalURL, d.Source, d.Author, pq.Array(d.Tags), d.Quality, d.PublishDate,
			readTimeOrZero(d.Metadata.ReadTime), now, id)
		if err != nil {
			return "", nil, fmt.Errorf("failed to update draft: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	d.ID = id
	d.UpdatedAt = now
	return action, &d, nil
}

// GetDraftBySlug возвращает черновик по slug
func (r *DraftRepository) GetDraftBySlug(ctx context.Context, slug string) (*model.BlogDraft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM blog_drafts WHERE slug=$1`, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

// ListDrafts возвращает черновики, при пустом status все, новые первыми
func (r *DraftRepository) ListDrafts(ctx context.Context, status model.DraftStatus, limit int) ([]model.BlogDraft, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+draftColumns+` FROM blog_drafts ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+draftColumns+` FROM blog_drafts WHERE status=$1 ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select drafts: %w", err)
	}
	defer rows.Close()
	out := []model.BlogDraft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// SetDraftStatus меняет статус; при публикации проставляет publish_date, если она пуста
func (r *DraftRepository) SetDraftStatus(ctx context.Context, slug string, status model.DraftStatus) error {
	now := r.now().UnixMilli()
	res, err := r.db.ExecContext(ctx, `UPDATE blog_drafts SET status=$1, updated_at=$2,
		publish_date=CASE WHEN $1='published' THEN COALESCE(publish_date, $2) ELSE publish_date END
		WHERE slug=$3`, string(status), now, slug)
	if err != nil {
		return fmt.Errorf("failed to update draft status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews увеличивает счётчик просмотров опубликованного поста
func (r *DraftRepository) IncrementViews(ctx context.Context, slug string) (int, error) {
	var views int
	err := r.db.QueryRowContext(ctx, `UPDATE blog_drafts
		SET metadata=jsonb_set(COALESCE(metadata, '{}'::jsonb), '{views}', to_jsonb(COALESCE((metadata->>'views')::int, 0) + 1))
		WHERE slug=$1 AND status='published'
		RETURNING (metadata->>'views')::int`, slug).Scan(&views)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	return views, nil
}

func readTimeOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
