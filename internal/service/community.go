package service

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"Portfolio/internal/model"
)

const (
	guestbookListLimit = 50
	contactsListLimit  = 100

	guestbookPerMinute = 3
	contactsPerMinute  = 5
)

var (
	ErrRateLimited = errors.New("Rate limit exceeded. Please try again later.")
	ErrSpam        = errors.New("Message flagged as spam")
	ErrHoneypot    = errors.New("Invalid submission")
)

var spamWords = []string{"viagra", "casino", "lottery", "click here", "buy now"}

// CommunityRepo хранилище гостевой книги и формы обратной связи
type CommunityRepo interface {
	CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error)
	ListContacts(ctx context.Context, limit int) ([]model.Contact, error)
	CountContactsSince(ctx context.Context, ip string, since int64) (int, error)
	CreateGuestbookEntry(ctx context.Context, e model.GuestbookEntry) (*model.GuestbookEntry, error)
	ListGuestbook(ctx context.Context, limit int) ([]model.GuestbookEntry, error)
	CountGuestbookSince(ctx context.Context, ip string, since int64) (int, error)
	ModerateGuestbook(ctx context.Context, id int64, approved bool) error
}

// CommunityService гостевая книга и контакты с ограничением частоты по IP
type CommunityService struct {
	repo CommunityRepo
	log  zerolog.Logger
	now  func() time.Time
}

func NewCommunityService(repo CommunityRepo, log zerolog.Logger) *CommunityService {
	return &CommunityService{repo: repo, log: log, now: time.Now}
}

// ContactForm поля формы обратной связи; Honeypot скрытое поле, заполняемое только ботами
type ContactForm struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
	Honeypot string `json:"honeypot"`
}

// GuestbookForm поля записи гостевой книги
type GuestbookForm struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

var emailHasAt = validation.By(func(v interface{}) error {
	if s, _ := v.(string); !strings.Contains(s, "@") {
		return validation.NewError("validation_email_at", "Valid email is required")
	}
	return nil
})

// PostGuestbook проверяет, обрезает и сохраняет запись; записи одобряются автоматически
func (s *CommunityService) PostGuestbook(ctx context.Context, f GuestbookForm, ip string) (*model.GuestbookEntry, error) {
	name := strings.TrimSpace(f.Name)
	message := strings.TrimSpace(f.Message)
	if err := validation.Validate(name, validation.Required.Error("Name is required")); err != nil {
		return nil, err
	}
	if err := validation.Validate(message, validation.Required.Error("Message is required")); err != nil {
		return nil, err
	}
	name = truncate(name, 50)
	message = truncate(message, 500)

	if ip != "" {
		n, err := s.repo.CountGuestbookSince(ctx, ip, s.minuteAgo())
		if err != nil {
			return nil, err
		}
		if n >= guestbookPerMinute {
			return nil, ErrRateLimited
		}
	}
	lower := strings.ToLower(message)
	for _, w := range spamWords {
		if strings.Contains(lower, w) {
			s.log.Info().Str("ip", ip).Msg("guestbook entry flagged as spam")
			return nil, ErrSpam
		}
	}
	return s.repo.CreateGuestbookEntry(ctx, model.GuestbookEntry{
		Name: name, Message: message, IP: optional(ip), Moderated: true,
	})
}

// ListGuestbook одобренные записи, новые первыми
func (s *CommunityService) ListGuestbook(ctx context.Context) ([]model.GuestbookEntry, error) {
	return s.repo.ListGuestbook(ctx, guestbookListLimit)
}

// ModerateGuestbook скрывает или одобряет запись
func (s *CommunityService) ModerateGuestbook(ctx context.Context, id int64, approved bool) error {
	return s.repo.ModerateGuestbook(ctx, id, approved)
}

// SubmitContact сохраняет сообщение формы обратной связи
func (s *CommunityService) SubmitContact(ctx context.Context, f ContactForm, ip string) (*model.Contact, error) {
	if f.Honeypot != "" {
		return nil, ErrHoneypot
	}
	name := strings.TrimSpace(f.Name)
	email := strings.TrimSpace(f.Email)
	message := strings.TrimSpace(f.Message)
	if err := validation.Validate(name, validation.Required.Error("Name is required")); err != nil {
		return nil, err
	}
	if err := validation.Validate(email, validation.Required.Error("Valid email is required"), emailHasAt); err != nil {
		return nil, err
	}
	if err := validation.Validate(message, validation.Required.Error("Message is required")); err != nil {
		return nil, err
	}

	if ip != "" {
		n, err := s.repo.CountContactsSince(ctx, ip, s.minuteAgo())
		if err != nil {
			return nil, err
		}
		if n >= contactsPerMinute {
			return nil, ErrRateLimited
		}
	}
	return s.repo.CreateContact(ctx, model.Contact{
		Name:    truncate(name, 100),
		Email:   truncate(email, 200),
		Message: truncate(message, 5000),
		IP:      optional(ip),
	})
}

// ListContacts последние сообщения для админки
func (s *CommunityService) ListContacts(ctx context.Context) ([]model.Contact, error) {
	return s.repo.ListContacts(ctx, contactsListLimit)
}

// IsValidationError сообщает, что ошибка вызвана данными формы, а не хранилищем
func IsValidationError(err error) bool {
	var ve validation.Error
	return errors.As(err, &ve) || errors.Is(err, ErrSpam) || errors.Is(err, ErrHoneypot) || errors.Is(err, ErrEmptyTitle)
}

func (s *CommunityService) minuteAgo() int64 {
	return s.now().Add(-time.Minute).UnixMilli()
}

// truncate обрезает по символам, а не байтам
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
