package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"Portfolio/internal/model"
)

const (
	defaultDraftsLimit    = 50
	defaultPublishedLimit = 20
)

var (
	ErrInvalidStatus     = errors.New("invalid draft status")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// Drafts хранилище черновиков
type Drafts interface {
	UpsertDraft(ctx context.Context, d model.BlogDraft) (model.SyncAction, *model.BlogDraft, error)
	GetDraftBySlug(ctx context.Context, slug string) (*model.BlogDraft, error)
	ListDrafts(ctx context.Context, status model.DraftStatus, limit int) ([]model.BlogDraft, error)
	SetDraftStatus(ctx context.Context, slug string, status model.DraftStatus) error
	IncrementViews(ctx context.Context, slug string) (int, error)
}

// Events публикация доменных событий
type Events interface {
	Publish(e model.Event) error
}

// IngestResult ответ на успешный приём статьи
type IngestResult struct {
	ID     int64            `json:"id"`
	Slug   string           `json:"slug"`
	Status model.SyncAction `json:"status"`
}

// Message текст для поля message ответа
func (r IngestResult) Message() string {
	if r.Status == model.SyncCreated {
		return "Draft created"
	}
	return "Draft updated"
}

type Service struct {
	drafts Drafts
	events Events
	apiKey string
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(drafts Drafts, events Events, apiKey string, log zerolog.Logger) *Service {
	return &Service{drafts: drafts, events: events, apiKey: apiKey, log: log, now: time.Now}
}

// Ingest принимает статью от конвейера и сохраняет её по slug: повтор обновляет, а не дублирует
func (s *Service) Ingest(ctx context.Context, raw []byte, headerKey string) (*IngestResult, error) {
	d, err := ParseIngest(raw, headerKey, s.apiKey)
	if err != nil {
		return nil, err
	}
	action, saved, err := s.drafts.UpsertDraft(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	s.publish(model.NewEvent("draft.ingested", "blog_draft", saved.Slug, map[string]any{
		"action": action, "source": saved.Source,
	}, s.now().UnixMilli()))
	return &IngestResult{ID: saved.ID, Slug: saved.Slug, Status: action}, nil
}

// ListDrafts черновики в статусе status (все при пустом), новые первыми
func (s *Service) ListDrafts(ctx context.Context, status string, limit int) ([]model.BlogDraft, error) {
	st := model.DraftStatus(strings.TrimSpace(status))
	if st != "" && !st.Valid() {
		return nil, ErrInvalidStatus
	}
	if limit <= 0 {
		limit = defaultDraftsLimit
	}
	return s.drafts.ListDrafts(ctx, st, limit)
}

// ListPublished опубликованные посты для публичной ленты
func (s *Service) ListPublished(ctx context.Context, limit int) ([]model.BlogDraft, error) {
	if limit <= 0 {
		limit = defaultPublishedLimit
	}
	return s.drafts.ListDrafts(ctx, model.DraftPublished, limit)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.BlogDraft, error) {
	return s.drafts.GetDraftBySlug(ctx, slug)
}

// UpdateStatus переводит черновик по жизненному циклу new→reviewed→approved→published, rejected из любого непубликованного
func (s *Service) UpdateStatus(ctx context.Context, slug string, next model.DraftStatus) (*model.BlogDraft, error) {
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}
	cur, err := s.drafts.GetDraftBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next)
	}
	if err := s.drafts.SetDraftStatus(ctx, slug, next); err != nil {
		return nil, err
	}
	s.publish(model.NewEvent("draft.status_changed", "blog_draft", slug, map[string]any{
		"from": cur.Status, "to": next,
	}, s.now().UnixMilli()))
	cur.Status = next
	return cur, nil
}

// IncrementViews увеличивает счётчик просмотров опубликованного поста
func (s *Service) IncrementViews(ctx context.Context, slug string) (int, error) {
	return s.drafts.IncrementViews(ctx, slug)
}

// Track публикует одно взаимодействие; ошибки только логируются, результат сообщает об успехе.
// Без sessionId взаимодействию присваивается новый идентификатор сессии
func (s *Service) Track(ctx context.Context, in model.Interaction) bool {
	return s.track(in, s.now().UnixMilli(), uuid.NewString())
}

// TrackBatch публикует пакет взаимодействий с общей меткой времени и возвращает число принятых.
// Элементы без sessionId получают один общий идентификатор на весь пакет
func (s *Service) TrackBatch(ctx context.Context, items []model.Interaction) int {
	at := s.now().UnixMilli()
	session := uuid.NewString()
	count := 0
	for _, in := range items {
		if s.track(in, at, session) {
			count++
		}
	}
	return count
}

func (s *Service) track(in model.Interaction, at int64, session string) bool {
	if in.PostSlug == "" || in.InteractionType == "" {
		return false
	}
	in.CreatedAt = at
	if in.SessionID == nil || *in.SessionID == "" {
		in.SessionID = &session
	}
	if err := s.events.Publish(model.NewEvent("blog.interaction", "blog_post", in.PostSlug, in, at)); err != nil {
		s.log.Debug().Err(err).Str("slug", in.PostSlug).Msg("interaction not tracked")
		return false
	}
	return true
}

func (s *Service) publish(e model.Event) {
	if err := s.events.Publish(e); err != nil {
		s.log.Warn().Err(err).Str("kind", e.Kind).Msg("failed to publish event")
	}
}
