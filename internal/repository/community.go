package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Portfolio/internal/model"
)

// CommunityRepository реализует доступ к таблицам contacts и guestbook
type CommunityRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCommunityRepository создаёт репозиторий формы обратной связи и гостевой книги
func NewCommunityRepository(db *sql.DB) *CommunityRepository {
	return &CommunityRepository{db: db, now: time.Now}
}

// CreateContact сохраняет сообщение обратной связи
func (r *CommunityRepository) CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	c.CreatedAt = r.now().UnixMilli()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO contacts(name, email, message, ip, created_at) VALUES($1, $2, $3, $4, $5) RETURNING id`,
		c.Name, c.Email, c.Message, c.IP, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contact: %w", err)
	}
	return &c, nil
}

// ListContacts возвращает последние сообщения обратной связи
func (r *CommunityRepository) ListContacts(ctx context.Context, limit int) ([]model.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, message, ip, created_at FROM contacts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select contacts: %w", err)
	}
	defer rows.Close()
	out := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Message, &c.IP, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountContactsSince считает сообщения с IP начиная с момента since (мс)
func (r *CommunityRepository) CountContactsSince(ctx context.Context, ip string, since int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE ip=$1 AND created_at>$2`, ip, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return n, nil
}

// CreateGuestbookEntry сохраняет запись гостевой книги
func (r *CommunityRepository) CreateGuestbookEntry(ctx context.Context, e model.GuestbookEntry) (*model.GuestbookEntry, error) {
	e.CreatedAt = r.now().UnixMilli()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO guestbook(name, message, ip, moderated, created_at) VALUES($1, $2, $3, $4, $5) RETURNING id`,
		e.Name, e.Message, e.IP, e.Moderated, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert guestbook entry: %w", err)
	}
	return &e, nil
}

// ListGuestbook возвращает одобренные записи, новые первыми
func (r *CommunityRepository) ListGuestbook(ctx context.Context, limit int) ([]model.GuestbookEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, message, ip, moderated, created_at FROM guestbook WHERE moderated=true ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select guestbook: %w", err)
	}
	defer rows.Close()
	out := []model.GuestbookEntry{}
	for rows.Next() {
		var e model.GuestbookEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Message, &e.IP, &e.Moderated, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guestbook entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountGuestbookSince считает записи с IP начиная с момента since (мс)
func (r *CommunityRepository) CountGuestbookSince(ctx context.Context, ip string, since int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guestbook WHERE ip=$1 AND created_at>$2`, ip, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count guestbook entries: %w", err)
	}
	return n, nil
}

// ModerateGuestbook одобряет или скрывает запись
func (r *CommunityRepository) ModerateGuestbook(ctx context.Context, id int64, approved bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE guestbook SET moderated=$1 WHERE id=$2`, approved, id)
	if err != nil {
		return fmt.Errorf("failed to moderate guestbook entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
