package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"Portfolio/internal/github"
	"Portfolio/internal/model"
	"Portfolio/internal/ordering"
)

// Ключи кеша проектов
const (
	keyVisible       = "projects:visible"
	keyAll           = "projects:all"
	keyProjectPrefix = "project:"
)

// ErrEmptyTitle заголовок проекта пуст
var ErrEmptyTitle = errors.New("Title is required")

// Repo определяет операции хранилища проектов (Postgres)
type Repo interface {
	CreateProject(ctx context.Context, p model.Project) (*model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, onlyVisible bool) ([]model.Project, error)
	UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
	SwapOrder(ctx context.Context, idA, idB string) ([]model.OrderUpdate, error)
	UpsertSynced(ctx context.Context, p model.Project) (model.SyncAction, error)
}

// Cache кеш результатов чтения (Redis)
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// Events публикация доменных событий (NATS)
type Events interface {
	Publish(e model.Event) error
}

// ProjectsService бизнес-логика проектов портфолио:
// чтение через кеш, мутации с инвалидацией кеша и публикацией события
type ProjectsService struct {
	repo   Repo
	cache  Cache
	events Events
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// NewProjectsService создаёт сервис проектов; ttl время жизни записей кеша
func NewProjectsService(r Repo, c Cache, e Events, ttl time.Duration, log zerolog.Logger) *ProjectsService {
	return &ProjectsService{repo: r, cache: c, events: e, ttl: ttl, log: log, now: time.Now}
}

// Get возвращает проект по внешнему id, сначала из кеша
func (s *ProjectsService) Get(ctx context.Context, id string) (*model.Project, error) {
	key := keyProjectPrefix + id
	if data, err := s.cache.Get(ctx, key); err == nil {
		var p model.Project
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, p)
	return p, nil
}

// ListVisible видимые проекты в каноническом порядке
func (s *ProjectsService) ListVisible(ctx context.Context) ([]model.Project, error) {
	return s.list(ctx, keyVisible, true)
}

// ListAll все проекты в каноническом порядке (админка)
func (s *ProjectsService) ListAll(ctx context.Context) ([]model.Project, error) {
	return s.list(ctx, keyAll, false)
}

// Featured видимые избранные проекты
func (s *ProjectsService) Featured(ctx context.Context) ([]model.Project, error) {
	list, err := s.ListVisible(ctx)
	if err != nil {
		return nil, err
	}
	return ordering.Featured(list), nil
}

// ByType видимые проекты заданного типа
func (s *ProjectsService) ByType(ctx context.Context, t model.ProjectType) ([]model.Project, error) {
	list, err := s.ListVisible(ctx)
	if err != nil {
		return nil, err
	}
	return ordering.ByType(list, t), nil
}

func (s *ProjectsService) list(ctx context.Context, key string, onlyVisible bool) ([]model.Project, error) {
	if data, err := s.cache.Get(ctx, key); err == nil {
		var list []model.Project
		if json.Unmarshal(data, &list) == nil {
			return list, nil
		}
	}
	list, err := s.repo.ListProjects(ctx, onlyVisible)
	if err != nil {
		return nil, err
	}
	list = ordering.Sort(list)
	if onlyVisible {
		list = ordering.Visible(list)
	}
	s.store(ctx, key, list)
	return list, nil
}

// Create сохраняет новый проект
func (s *ProjectsService) Create(ctx context.Context, p model.Project) (*model.Project, error) {
	if isBlank(p.Title) {
		return nil, ErrEmptyTitle
	}
	created, err := s.repo.CreateProject(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.ID)
	s.publish("project.created", created.ID, created)
	return created, nil
}

// Update применяет частичный патч
func (s *ProjectsService) Update(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	if patch.Title != nil && isBlank(*patch.Title) {
		return nil, ErrEmptyTitle
	}
	updated, err := s.repo.UpdateProject(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.publish("project.updated", id, patch)
	return updated, nil
}

// Delete удаляет проект
func (s *ProjectsService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.publish("project.removed", id, nil)
	return nil
}

// Move меняет проект местами с соседом в каноническом порядке всего набора (включая скрытые).
// На краю списка ничего не меняется и возвращается nil
func (s *ProjectsService) Move(ctx context.Context, id string, dir ordering.Direction) ([]model.OrderUpdate, error) {
	all, err := s.repo.ListProjects(ctx, false)
	if err != nil {
		return nil, err
	}
	plan, err := ordering.PlanSwap(all, id, dir)
	if err != nil || plan == nil {
		return nil, err
	}
	// ранги меняются в БД по текущим значениям строк, план задаёт только пару
	neighborID := plan[1].ID
	updates, err := s.repo.SwapOrder(ctx, id, neighborID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id, neighborID)
	s.publish("project.reordered", id, updates)
	return updates, nil
}

// SyncReport итог массовой синхронизации
type SyncReport struct {
	Success bool               `json:"success"`
	Total   int                `json:"total"`
	Results []model.SyncResult `json:"results"`
}

// BulkSync создаёт или обновляет проект для каждого репозитория.
// Ошибка одного элемента попадает в отчёт и не прерывает синхронизацию
func (s *ProjectsService) BulkSync(ctx context.Context, repos []github.Repo, username string) SyncReport {
	now := s.now()
	report := SyncReport{Success: true, Total: len(repos), Results: make([]model.SyncResult, 0, len(repos))}
	var touched []string
	for _, r := range repos {
		p := github.ProjectFromRepo(r, username, now)
		action, err := s.repo.UpsertSynced(ctx, p)
		if err != nil {
			s.log.Warn().Err(err).Str("repo", r.Name).Msg("github sync item failed")
			report.Results = append(report.Results, model.SyncResult{ID: r.Name, Action: model.SyncError, Error: err.Error()})
			continue
		}
		touched = append(touched, p.ID)
		report.Results = append(report.Results, model.SyncResult{ID: p.ID, Action: action, Title: r.Name})
	}
	s.invalidate(ctx, touched...)
	s.publish("projects.synced", username, report)
	return report
}

func (s *ProjectsService) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache projects")
	}
}

func (s *ProjectsService) invalidate(ctx context.Context, ids ...string) {
	keys := []string{keyVisible, keyAll}
	for _, id := range ids {
		keys = append(keys, keyProjectPrefix+id)
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Strs("keys", keys).Msg("failed to invalidate cache")
	}
}

func (s *ProjectsService) publish(kind, id string, payload any) {
	e := model.NewEvent(kind, "project", id, payload, s.now().UnixMilli())
	if err := s.events.Publish(e); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Msg("failed to publish event")
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
