package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"Portfolio/internal/model"
)

// TierHeader заголовок, которым уровень доступа сообщается клиенту.
// Входящее значение этого заголовка никогда не используется
const TierHeader = "x-user-tier"

type identityKey struct{}

// Identity результат аутентификации запроса
type Identity struct {
	Email string
	Tier  model.Tier
}

// Authenticated сообщает, что у запроса есть сессия
func (i Identity) Authenticated() bool {
	return i.Email != ""
}

// Authenticator определяет личность запроса по bearer-токену
type Authenticator struct {
	tokens   *Tokens
	resolver *Resolver
}

// NewAuthenticator создаёт аутентификатор
func NewAuthenticator(tokens *Tokens, resolver *Resolver) *Authenticator {
	return &Authenticator{tokens: tokens, resolver: resolver}
}

// Identify заново вычисляет уровень по токену запроса
func (a *Authenticator) Identify(r *http.Request) Identity {
	raw := bearer(r)
	if raw == "" {
		return Identity{Tier: model.TierGuest}
	}
	email, err := a.tokens.Parse(raw)
	if err != nil {
		return Identity{Tier: model.TierGuest}
	}
	return Identity{Email: email, Tier: a.resolver.ResolveTier(r.Context(), email)}
}

// Middleware кладёт Identity в контекст и удаляет входящий x-user-tier
func (a *Authenticator) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(TierHeader)
			id := a.Identify(r)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireTier пропускает запрос только с уровнем не ниже min.
// Уровень вычисляется из токена в самом обработчике: 401 без сессии, 403 при недостаточном уровне
func (a *Authenticator) RequireTier(min model.Tier) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := a.Identify(r)
			if !id.Tier.AtLeast(min) {
				if !id.Authenticated() {
					writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
				writeAuthError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity сохраняет личность в контексте
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext возвращает личность запроса, по умолчанию guest
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Identity{Tier: model.TierGuest}
}

func bearer(r *http.Request) string {
	ah := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
