// Пакет auth определяет уровень доступа (guest/authenticated/admin) по сессии
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается для неподписанных, просроченных или пустых токенов
var ErrInvalidToken = errors.New("invalid session token")

// ErrEmptySecret возвращается, если ключ подписи не задан
var ErrEmptySecret = errors.New("token secret is empty")

// Tokens выпускает и проверяет HS256-токены сессии, в subject email пользователя
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens создаёт выпускатель токенов
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue подписывает токен для email
func (t *Tokens) Issue(email string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrEmptySecret
	}
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrInvalidToken
	}
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": email,
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись и срок токена и возвращает email
func (t *Tokens) Parse(raw string) (string, error) {
	// с пустым ключом любой может подписать токен
	if len(t.secret) == 0 {
		return "", ErrEmptySecret
	}
	token, err := jwt.Parse(raw, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return normalizeEmail(sub), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
