package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Portfolio/internal/model"
)

// UserRepository реализует доступ к таблице users
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserRepository создаёт репозиторий пользователей
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// GetUserByEmail возвращает пользователя по email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	var tier string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, image, is_admin, tier, created_at FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.IsAdmin, &tier, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Tier = model.Tier(tier)
	return &u, nil
}

// UpsertUser создаёт пользователя или обновляет профиль при повторном входе.
// Флаг администратора только повышается, снять его можно лишь вручную
func (r *UserRepository) UpsertUser(ctx context.Context, u model.User) (*model.User, error) {
	query := `INSERT INTO users(email, name, image, is_admin, tier, created_at)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name, image=EXCLUDED.image,
			is_admin=users.is_admin OR EXCLUDED.is_admin,
			tier=CASE WHEN users.is_admin OR EXCLUDED.is_admin THEN 'admin' ELSE EXCLUDED.tier END
		RETURNING id, is_admin, tier, created_at`
	var tier string
	err := r.db.QueryRowContext(ctx, query, u.Email, u.Name, u.Image, u.IsAdmin, string(u.Tier), r.now().UnixMilli()).
		Scan(&u.ID, &u.IsAdmin, &tier, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	u.Tier = model.Tier(tier)
	return &u, nil
}
