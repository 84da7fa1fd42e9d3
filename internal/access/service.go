// Пакет access реализует сценарий запроса доступа к закрытому репозиторию проекта
package access

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"Portfolio/internal/model"
	"Portfolio/internal/repository"
)

// задержки закрытия диалога после успешной отправки
const (
	RedirectDelay = 1200 * time.Millisecond
	ReviewDelay   = 2000 * time.Millisecond
)

var (
	// ErrInvalidRequest оборачивает ошибки валидации полей
	ErrInvalidRequest = errors.New("invalid access request")
	// ErrPrivateProject возвращается для проектов с repoAccess=private
	ErrPrivateProject = errors.New("repository is private")
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Action что делать посетителю после успешной отправки
type Action string

const (
	ActionRedirect Action = "redirect"
	ActionReview   Action = "review"
)

// SubmitRequest данные формы запроса доступа
type SubmitRequest struct {
	ProjectID string  `json:"projectId"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Company   *string `json:"company,omitempty"`
	Message   *string `json:"message,omitempty"`
}

// Validate проверяет обязательные поля формы
func (r SubmitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectID, validation.Required),
		validation.Field(&r.Email, validation.Required, validation.Match(emailRe).Error("must be a valid email address")),
		validation.Field(&r.Name, validation.Required),
	)
}

// Outcome результат отправки: редирект на репозиторий или ожидание проверки
type Outcome struct {
	Action       Action               `json:"action"`
	RedirectURL  string               `json:"redirectUrl,omitempty"`
	CloseAfter   time.Duration        `json:"-"`
	CloseAfterMs int64                `json:"closeAfterMs"`
	Request      *model.AccessRequest `json:"request"`
}

// Projects источник проектов для проверки режима доступа
type Projects interface {
	Get(ctx context.Context, id string) (*model.Project, error)
}

// Repo хранилище запросов доступа
type Repo interface {
	CreateAccessRequest(ctx context.Context, r model.AccessRequest) (*model.AccessRequest, error)
	SetAccessStatus(ctx context.Context, id int64, status model.AccessStatus, approvedAt *int64) (*model.AccessRequest, error)
	ListAccessRequests(ctx context.Context, projectID string) ([]model.AccessRequest, error)
}

// Events публикует доменные события
type Events interface {
	Publish(e model.Event) error
}

// Service принимает запросы доступа и переводит их по статусам
type Service struct {
	projects Projects
	repo     Repo
	events   Events
	log      zerolog.Logger
	now      func() time.Time
}

// NewService создаёт сервис запросов доступа
func NewService(projects Projects, repo Repo, events Events, log zerolog.Logger) *Service {
	return &Service{projects: projects, repo: repo, events: events, log: log, now: time.Now}
}

// Submit валидирует форму, сохраняет запрос со статусом pending и возвращает
// дальнейшее действие в зависимости от repoAccess проекта
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p, err := s.projects.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	// скрытый проект для посетителя не существует
	if !p.Visible {
		return nil, repository.ErrNotFound
	}
	if p.RepoAccess == model.AccessPrivate {
		return nil, ErrPrivateProject
	}
	name := req.Name
	created, err := s.repo.CreateAccessRequest(ctx, model.AccessRequest{
		ProjectID: req.ProjectID,
		Email:     req.Email,
		Name:      &name,
		Company:   nonEmpty(req.Company),
		Message:   nonEmpty(req.Message),
		Status:    model.AccessPending,
	})
	if err != nil {
		return nil, err
	}
	s.publish("access_request.submitted", created)

	out := &Outcome{Action: ActionReview, CloseAfter: ReviewDelay, Request: created}
	if p.RepoAccess == model.AccessPublic && p.GithubURL != nil && *p.GithubURL != "" {
		out.Action = ActionRedirect
		out.RedirectURL = *p.GithubURL
		out.CloseAfter = RedirectDelay
	}
	out.CloseAfterMs = out.CloseAfter.Milliseconds()
	return out, nil
}

// Approve переводит запрос в approved и проставляет approvedAt
func (s *Service) Approve(ctx context.Context, id int64) (*model.AccessRequest, error) {
	at := s.now().UnixMilli()
	r, err := s.repo.SetAccessStatus(ctx, id, model.AccessApproved, &at)
	if err != nil {
		return nil, err
	}
	s.publish("access_request.approved", r)
	return r, nil
}

// Reject переводит запрос в rejected
func (s *Service) Reject(ctx context.Context, id int64) (*model.AccessRequest, error) {
	r, err := s.repo.SetAccessStatus(ctx, id, model.AccessRejected, nil)
	if err != nil {
		return nil, err
	}
	s.publish("access_request.rejected", r)
	return r, nil
}

// ListForProject возвращает запросы по проекту, новые первыми
func (s *Service) ListForProject(ctx context.Context, projectID string) ([]model.AccessRequest, error) {
	return s.repo.ListAccessRequests(ctx, projectID)
}

func (s *Service) publish(kind string, r *model.AccessRequest) {
	e := model.NewEvent(kind, "access_request", fmt.Sprint(r.ID), r, s.now().UnixMilli())
	if err := s.events.Publish(e); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Msg("failed to publish event")
	}
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
