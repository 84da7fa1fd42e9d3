package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"Portfolio/internal/github"
	"Portfolio/internal/model"
	"Portfolio/internal/ordering"
	cachepkg "Portfolio/pkg/cache"
)

// mockRepo реализует Repo; поля-функции задают поведение отдельных методов
type mockRepo struct {
	createFn func(ctx context.Context, p model.Project) (*model.Project, error)
	getFn    func(ctx context.Context, id string) (*model.Project, error)
	listFn   func(ctx context.Context, onlyVisible bool) ([]model.Project, error)
	updateFn func(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	deleteFn func(ctx context.Context, id string) error
	swapFn   func(ctx context.Context, idA, idB string) ([]model.OrderUpdate, error)
	upsertFn func(ctx context.Context, p model.Project) (model.SyncAction, error)
}

func (m *mockRepo) CreateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	return m.createFn(ctx, p)
}
func (m *mockRepo) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return m.getFn(ctx, id)
}
func (m *mockRepo) ListProjects(ctx context.Context, onlyVisible bool) ([]model.Project, error) {
	return m.listFn(ctx, onlyVisible)
}
func (m *mockRepo) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	return m.updateFn(ctx, id, patch)
}
func (m *mockRepo) DeleteProject(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}
func (m *mockRepo) SwapOrder(ctx context.Context, idA, idB string) ([]model.OrderUpdate, error) {
	return m.swapFn(ctx, idA, idB)
}
func (m *mockRepo) UpsertSynced(ctx context.Context, p model.Project) (model.SyncAction, error) {
	return m.upsertFn(ctx, p)
}

// mockCache симулирует Redis с настраиваемыми методами и запоминает инвалидированные ключи
type mockCache struct {
	set         func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	get         func(ctx context.Context, key string) ([]byte, error)
	invalidated []string
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.set == nil {
		return nil
	}
	return m.set(ctx, key, value, ttl)
}
func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.get == nil {
		return nil, cachepkg.ErrCacheMiss
	}
	return m.get(ctx, key)
}
func (m *mockCache) Invalidate(ctx context.Context, keys ...string) error {
	m.invalidated = append(m.invalidated, keys...)
	return nil
}

// mockEvents запоминает опубликованные события
type mockEvents struct {
	events []model.Event
	err    error
}

func (m *mockEvents) Publish(e model.Event) error {
	m.events = append(m.events, e)
	return m.err
}

func intPtr(v int) *int { return &v }

func newProjectsService(repo *mockRepo, cache *mockCache, events *mockEvents) *ProjectsService {
	s := NewProjectsService(repo, cache, events, time.Minute, zerolog.Nop())
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s
}

func TestGet_CacheHitAndMiss(t *testing.T) {
	cached, _ := json.Marshal(model.Project{ID: "p1", Title: "From cache"})
	cache := &mockCache{get: func(ctx context.Context, key string) ([]byte, error) {
		if key == "project:p1" {
			return cached, nil
		}
		return nil, cachepkg.ErrCacheMiss
	}}
	var storedKey string
	var storedTTL time.Duration
	cache.set = func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
		storedKey, storedTTL = key, ttl
		return nil
	}
	repo := &mockRepo{getFn: func(ctx context.Context, id string) (*model.Project, error) {
		return &model.Project{ID: id, Title: "From db"}, nil
	}}
	s := newProjectsService(repo, cache, &mockEvents{})

	p, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "From cache", p.Title)

	p, err = s.Get(context.Background(), "p2")
	require.NoError(t, err)
	require.Equal(t, "From db", p.Title)
	require.Equal(t, "project:p2", storedKey)
	require.Equal(t, time.Minute, storedTTL)
}

// Видимый список отсортирован канонически и не содержит скрытых проектов
func TestListVisible_SortsAndFilters(t *testing.T) {
	repo := &mockRepo{listFn: func(ctx context.Context, onlyVisible bool) ([]model.Project, error) {
		require.True(t, onlyVisible)
		return []model.Project{
			{ID: "c", Order: intPtr(5), UpdatedAt: 1, Visible: true},
			{ID: "d", Order: nil, Visible: true, Featured: true},
			{ID: "a", Order: intPtr(2), Visible: true, Type: model.TypeLiveApp},
			{ID: "b", Order: intPtr(5), UpdatedAt: 2, Visible: true, Featured: true},
			{ID: "hidden", Order: intPtr(1), Visible: false},
		}, nil
	}}
	s := newProjectsService(repo, &mockCache{}, &mockEvents{})

	list, err := s.ListVisible(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, ids)

	featured, err := s.Featured(context.Background())
	require.NoError(t, err)
	require.Len(t, featured, 2)
	require.Equal(t, "b", featured[0].ID)

	live, err := s.ByType(context.Background(), model.TypeLiveApp)
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestCreate_InvalidatesAndPublishes(t *testing.T) {
	repo := &mockRepo{createFn: func(ctx context.Context, p model.Project) (*model.Project, error) {
		p.StoreID = 1
		return &p, nil
	}}
	cache := &mockCache{}
	events := &mockEvents{}
	s := newProjectsService(repo, cache, events)

	_, err := s.Create(context.Background(), model.Project{ID: "p1", Title: "  "})
	require.ErrorIs(t, err, ErrEmptyTitle)
	require.Empty(t, events.events)

	created, err := s.Create(context.Background(), model.Project{ID: "p1", Title: "Demo"})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.StoreID)
	require.Equal(t, []string{"projects:visible", "projects:all", "project:p1"}, cache.invalidated)
	require.Len(t, events.events, 1)
	require.Equal(t, "project.created", events.events[0].Kind)
	require.Equal(t, int64(1_700_000_000_000), events.events[0].At)
}

// Ошибка NATS не ломает мутацию
func TestUpdate_PublishErrorIgnored(t *testing.T) {
	title := "New"
	repo := &mockRepo{updateFn: func(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
		return &model.Project{ID: id, Title: *patch.Title}, nil
	}}
	s := newProjectsService(repo, &mockCache{}, &mockEvents{err: errors.New("nats down")})
	p, err := s.Update(context.Background(), "p1", model.ProjectPatch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "New", p.Title)

	blank := " "
	_, err = s.Update(context.Background(), "p1", model.ProjectPatch{Title: &blank})
	require.ErrorIs(t, err, ErrEmptyTitle)
}

func TestDelete_PropagatesError(t *testing.T) {
	ex := errors.New("not found")
	cache := &mockCache{}
	repo := &mockRepo{deleteFn: func(ctx context.Context, id string) error { return ex }}
	s := newProjectsService(repo, cache, &mockEvents{})
	require.ErrorIs(t, s.Delete(context.Background(), "p1"), ex)
	require.Empty(t, cache.invalidated)
}

// Соседи считаются по всему набору, включая скрытые проекты
func TestMove_SwapsWithNeighbor(t *testing.T) {
	all := []model.Project{
		{ID: "a", Order: intPtr(1)},
		{ID: "hidden", Order: intPtr(2), Visible: false},
		{ID: "c", Order: intPtr(3), Visible: true},
	}
	var swapped [2]string
	repo := &mockRepo{
		listFn: func(ctx context.Context, onlyVisible bool) ([]model.Project, error) {
			require.False(t, onlyVisible)
			return all, nil
		},
		swapFn: func(ctx context.Context, idA, idB string) ([]model.OrderUpdate, error) {
			swapped = [2]string{idA, idB}
			return []model.OrderUpdate{{ID: idA, Order: 2}, {ID: idB, Order: 3}}, nil
		},
	}
	cache := &mockCache{}
	events := &mockEvents{}
	s := newProjectsService(repo, cache, events)

	updates, err := s.Move(context.Background(), "c", ordering.Up)
	require.NoError(t, err)
	require.Equal(t, [2]string{"c", "hidden"}, swapped)
	require.Len(t, updates, 2)
	require.Contains(t, cache.invalidated, "project:hidden")
	require.Equal(t, "project.reordered", events.events[0].Kind)
}

func TestMove_NoOpAtEdges(t *testing.T) {
	repo := &mockRepo{
		listFn: func(ctx context.Context, onlyVisible bool) ([]model.Project, error) {
			return []model.Project{{ID: "a", Order: intPtr(1)}, {ID: "b", Order: intPtr(2)}}, nil
		},
		swapFn: func(ctx context.Context, idA, idB string) ([]model.OrderUpdate, error) {
			t.Fatal("swap must not be called at the edge")
			return nil, nil
		},
	}
	s := newProjectsService(repo, &mockCache{}, &mockEvents{})

	updates, err := s.Move(context.Background(), "a", ordering.Up)
	require.NoError(t, err)
	require.Nil(t, updates)
	updates, err = s.Move(context.Background(), "b", ordering.Down)
	require.NoError(t, err)
	require.Nil(t, updates)

	_, err = s.Move(context.Background(), "missing", ordering.Up)
	require.ErrorIs(t, err, ordering.ErrNotFound)
}

// Ошибка одного репозитория попадает в отчёт, остальные синхронизируются
func TestBulkSync_PerItemResults(t *testing.T) {
	var upserted []model.Project
	repo := &mockRepo{upsertFn: func(ctx context.Context, p model.Project) (model.SyncAction, error) {
		upserted = append(upserted, p)
		switch p.ID {
		case "ann-broken":
			return "", errors.New("constraint violation")
		case "ann-old-tool":
			return model.SyncUpdated, nil
		}
		return model.SyncCreated, nil
	}}
	cache := &mockCache{}
	s := newProjectsService(repo, cache, &mockEvents{})

	report := s.BulkSync(context.Background(), []github.Repo{
		{Name: "New.App", FullName: "ann/New.App", URL: "https://github.com/ann/New.App"},
		{Name: "broken"},
		{Name: "Old Tool", Description: "kept"},
	}, "ann")

	require.True(t, report.Success)
	require.Equal(t, 3, report.Total)
	require.Equal(t, []model.SyncResult{
		{ID: "ann-new-app", Action: model.SyncCreated, Title: "New.App"},
		{ID: "broken", Action: model.SyncError, Error: "constraint violation"},
		{ID: "ann-old-tool", Action: model.SyncUpdated, Title: "Old Tool"},
	}, report.Results)
	require.Len(t, upserted, 3)
	require.Equal(t, model.DefaultOrder, *upserted[0].Order)
	require.Equal(t, "Repository: ann/New.App", upserted[0].Description)
	require.Contains(t, cache.invalidated, "project:ann-old-tool")
	require.NotContains(t, cache.invalidated, "project:ann-broken")
}
