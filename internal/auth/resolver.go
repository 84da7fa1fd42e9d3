package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"Portfolio/internal/model"
	"Portfolio/internal/repository"
)

// Users хранилище пользователей
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertUser(ctx context.Context, u model.User) (*model.User, error)
}

// Resolver сопоставляет email уровню доступа.
// Администратором считается пользователь с флагом isAdmin ИЛИ email из списка разрешённых
type Resolver struct {
	users  Users
	admins map[string]struct{}
	log    zerolog.Logger
}

// NewResolver создаёт резолвер со списком email администраторов
func NewResolver(users Users, adminEmails []string, log zerolog.Logger) *Resolver {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Resolver{users: users, admins: admins, log: log}
}

// IsAdminEmail проверяет email по списку без учёта регистра
func (r *Resolver) IsAdminEmail(email string) bool {
	_, ok := r.admins[normalizeEmail(email)]
	return ok
}

// ResolveTier возвращает уровень доступа для email сессии, для пустого email это guest.
// Ошибка хранилища не поднимает уровень выше authenticated
func (r *Resolver) ResolveTier(ctx context.Context, email string) model.Tier {
	email = normalizeEmail(email)
	if email == "" {
		return model.TierGuest
	}
	if r.IsAdminEmail(email) {
		return model.TierAdmin
	}
	u, err := r.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.log.Warn().Err(err).Msg("failed to load user for tier resolution")
		}
		return model.TierAuthenticated
	}
	if u.IsAdmin {
		return model.TierAdmin
	}
	return model.TierAuthenticated
}

// SignIn создаёт или обновляет пользователя при входе и выдаёт токен
func (r *Resolver) SignIn(ctx context.Context, tokens *Tokens, email string, name, image *string) (*model.User, string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, "", ErrInvalidToken
	}
	u := model.User{Email: email, Name: name, Image: image, Tier: model.TierAuthenticated}
	if r.IsAdminEmail(email) {
		u.IsAdmin = true
		u.Tier = model.TierAdmin
	}
	saved, err := r.users.UpsertUser(ctx, u)
	if err != nil {
		return nil, "", err
	}
	token, err := tokens.Issue(email)
	if err != nil {
		return nil, "", err
	}
	return saved, token, nil
}
