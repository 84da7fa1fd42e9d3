package blog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"Portfolio/internal/model"
)

// mockDrafts хранит черновики в памяти по slug, как это делает таблица с уникальным slug
type mockDrafts struct {
	bySlug    map[string]*model.BlogDraft
	nextID    int64
	setStatus func(slug string, st model.DraftStatus) error
	upsertErr error
}

func newMockDrafts() *mockDrafts {
	return &mockDrafts{bySlug: map[string]*model.BlogDraft{}}
}

func (m *mockDrafts) UpsertDraft(ctx context.Context, d model.BlogDraft) (model.SyncAction, *model.BlogDraft, error) {
	if m.upsertErr != nil {
		return "", nil, m.upsertErr
	}
	if cur, ok := m.bySlug[d.Slug]; ok {
		d.ID, d.Status = cur.ID, cur.Status
		m.bySlug[d.Slug] = &d
		return model.SyncUpdated, &d, nil
	}
	m.nextID++
	d.ID = m.nextID
	m.bySlug[d.Slug] = &d
	return model.SyncCreated, &d, nil
}

func (m *mockDrafts) GetDraftBySlug(ctx context.Context, slug string) (*model.BlogDraft, error) {
	d, ok := m.bySlug[slug]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *d
	return &cp, nil
}

func (m *mockDrafts) ListDrafts(ctx context.Context, status model.DraftStatus, limit int) ([]model.BlogDraft, error) {
	var out []model.BlogDraft
	for _, d := range m.bySlug {
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDrafts) SetDraftStatus(ctx context.Context, slug string, st model.DraftStatus) error {
	if m.setStatus != nil {
		return m.setStatus(slug, st)
	}
	m.bySlug[slug].Status = st
	return nil
}

func (m *mockDrafts) IncrementViews(ctx context.Context, slug string) (int, error) {
	return 1, nil
}

// mockEvents собирает опубликованные события
type mockEvents struct {
	events []model.Event
	err    error
}

func (m *mockEvents) Publish(e model.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func newService(drafts *mockDrafts, events *mockEvents) *Service {
	s := NewService(drafts, events, "secret", zerolog.Nop())
	s.now = func() time.Time { return time.UnixMilli(5000) }
	return s
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "hello-world", Slugify("  Hello, World!  "))
	require.Equal(t, "go-1-24-what-s-new", Slugify("Go 1.24: What's new?"))
	long := Slugify(strings.Repeat("abcde ", 20))
	require.Len(t, long, 60)
	require.Equal(t, "", Slugify("!!!"))
}

func TestReadTime(t *testing.T) {
	require.Equal(t, 1, ReadTime("one two three"))
	require.Equal(t, 1, ReadTime(strings.Repeat("w ", 200)))
	require.Equal(t, 2, ReadTime(strings.Repeat("w ", 201)))
	require.Equal(t, 0, ReadTime("   "))
}

func TestParseIngest_Flat(t *testing.T) {
	raw := []byte(`{"apiKey":"secret","title":"Hello World","content":"a b c","canonicalUrl":"https://dev.to/x","source":"dev.to","tags":["go"],"quality":8}`)
	d, err := ParseIngest(raw, "", "secret")
	require.NoError(t, err)
	require.Equal(t, "hello-world", d.Slug)
	require.Equal(t, DefaultAuthor, *d.Author)
	require.Equal(t, 1, *d.Metadata.ReadTime)
	require.Equal(t, 8, *d.Quality)
	require.Equal(t, model.DraftNew, d.Status)
}

func TestParseIngest_Nested(t *testing.T) {
	raw := []byte(`{"frontmatter":{"title":"Nested","canonical":"https://x/n","source":{"name":"Medium"},"tags":["a"]},"body":"text","slug":"custom","author":"Ann"}`)
	d, err := ParseIngest(raw, "secret", "secret")
	require.NoError(t, err)
	require.Equal(t, "custom", d.Slug)
	require.Equal(t, "Medium", d.Source)
	require.Equal(t, "text", d.Content)
	require.Equal(t, "Ann", *d.Author)
	require.Equal(t, []string{"a"}, d.Tags)
}

func TestParseIngest_Errors(t *testing.T) {
	_, err := ParseIngest([]byte(`{"apiKey":"wrong","title":"t"}`), "", "secret")
	require.ErrorIs(t, err, ErrUnauthorized)

	// ключ из заголовка учитывается только при пустом apiKey в теле
	_, err = ParseIngest([]byte(`{"apiKey":"wrong"}`), "secret", "secret")
	require.ErrorIs(t, err, ErrUnauthorized)

	// без настроенного ключа приём закрыт
	_, err = ParseIngest([]byte(`{}`), "", "")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = ParseIngest([]byte(`not json`), "secret", "secret")
	require.ErrorIs(t, err, ErrInvalidBody)

	var missing *MissingFieldsError
	_, err = ParseIngest([]byte(`{"title":"t","content":"c"}`), "secret", "secret")
	require.ErrorAs(t, err, &missing)
	require.False(t, missing.Nested)

	_, err = ParseIngest([]byte(`{"frontmatter":{"title":"t"},"body":"b"}`), "secret", "secret")
	require.ErrorAs(t, err, &missing)
	require.True(t, missing.Nested)
}

// Два приёма с одинаковым заголовком дают одну запись
func TestIngest_IdempotentBySlug(t *testing.T) {
	drafts := newMockDrafts()
	events := &mockEvents{}
	s := newService(drafts, events)
	ctx := context.Background()

	first, err := s.Ingest(ctx, []byte(`{"title":"Same","content":"one","canonicalUrl":"https://x","source":"dev.to"}`), "secret")
	require.NoError(t, err)
	require.Equal(t, model.SyncCreated, first.Status)
	require.Equal(t, "Draft created", first.Message())

	second, err := s.Ingest(ctx, []byte(`{"title":"Same","content":"two","canonicalUrl":"https://x","source":"dev.to"}`), "secret")
	require.NoError(t, err)
	require.Equal(t, model.SyncUpdated, second.Status)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, drafts.bySlug, 1)
	require.Equal(t, "two", drafts.bySlug["same"].Content)
	require.Len(t, events.events, 2)
	require.Equal(t, "draft.ingested", events.events[0].Kind)
}

func TestIngest_StoreError(t *testing.T) {
	drafts := newMockDrafts()
	drafts.upsertErr = errors.New("db down")
	s := newService(drafts, &mockEvents{})
	_, err := s.Ingest(context.Background(), []byte(`{"title":"T","content":"c","canonicalUrl":"u","source":"s"}`), "secret")
	require.ErrorContains(t, err, "db down")
}

func TestUpdateStatus(t *testing.T) {
	drafts := newMockDrafts()
	drafts.bySlug["p"] = &model.BlogDraft{Slug: "p", Status: model.DraftNew}
	events := &mockEvents{}
	s := newService(drafts, events)
	ctx := context.Background()

	_, err := s.UpdateStatus(ctx, "p", model.DraftPublished)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.UpdateStatus(ctx, "p", "bogus")
	require.ErrorIs(t, err, ErrInvalidStatus)

	for _, st := range []model.DraftStatus{model.DraftReviewed, model.DraftApproved, model.DraftPublished} {
		d, err := s.UpdateStatus(ctx, "p", st)
		require.NoError(t, err)
		require.Equal(t, st, d.Status)
	}
	require.Len(t, events.events, 3)

	_, err = s.UpdateStatus(ctx, "p", model.DraftRejected)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListDefaults(t *testing.T) {
	drafts := newMockDrafts()
	s := newService(drafts, &mockEvents{})
	_, err := s.ListDrafts(context.Background(), "unknown", 0)
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = s.ListDrafts(context.Background(), "", 0)
	require.NoError(t, err)
	_, err = s.ListPublished(context.Background(), 0)
	require.NoError(t, err)
}

// Ошибки трекинга не всплывают наружу
func TestTrack_FireAndForget(t *testing.T) {
	events := &mockEvents{}
	s := newService(newMockDrafts(), events)

	require.True(t, s.Track(context.Background(), model.Interaction{PostSlug: "p", InteractionType: "click"}))
	require.False(t, s.Track(context.Background(), model.Interaction{InteractionType: "click"}))
	require.Equal(t, "blog.interaction", events.events[0].Kind)
	require.Equal(t, int64(5000), events.events[0].At)

	n := s.TrackBatch(context.Background(), []model.Interaction{
		{PostSlug: "a", InteractionType: "scroll"},
		{PostSlug: "", InteractionType: "scroll"},
		{PostSlug: "b", InteractionType: "time_spent"},
	})
	require.Equal(t, 2, n)

	// sessionId генерируется, если клиент его не передал; в пакете он общий
	var first, second, third model.Interaction
	require.NoError(t, json.Unmarshal(events.events[0].Payload, &first))
	require.NoError(t, json.Unmarshal(events.events[1].Payload, &second))
	require.NoError(t, json.Unmarshal(events.events[2].Payload, &third))
	require.NotNil(t, first.SessionID)
	require.NotNil(t, second.SessionID)
	require.NotEqual(t, *first.SessionID, *second.SessionID)
	require.Equal(t, *second.SessionID, *third.SessionID)

	own := "client-session"
	require.True(t, s.Track(context.Background(), model.Interaction{PostSlug: "p", InteractionType: "click", SessionID: &own}))
	var kept model.Interaction
	require.NoError(t, json.Unmarshal(events.events[3].Payload, &kept))
	require.Equal(t, own, *kept.SessionID)

	events.err = errors.New("nats down")
	require.False(t, s.Track(context.Background(), model.Interaction{PostSlug: "p", InteractionType: "click"}))
	require.Zero(t, s.TrackBatch(context.Background(), []model.Interaction{{PostSlug: "a", InteractionType: "x"}}))
}

func TestFilterPosts(t *testing.T) {
	summary := "Deep dive into Postgres locks"
	posts := []model.BlogDraft{
		{Title: "Go tips", Tags: []string{"Go", "tips"}, Source: "https://www.dev.to/ann"},
		{Title: "Rust", Tags: []string{"rust"}, Source: "Medium"},
		{Title: "DB", Tags: []string{"sql"}, Source: "dev.to", Metadata: model.DraftMetadata{AISummary: &summary}},
	}

	require.Len(t, FilterPosts(posts, Filter{}), 3)
	require.Len(t, FilterPosts(posts, Filter{Query: "postgres"}), 1)
	require.Len(t, FilterPosts(posts, Filter{Query: "TIP"}), 1)
	require.Len(t, FilterPosts(posts, Filter{Tag: "go"}), 1)
	require.Len(t, FilterPosts(posts, Filter{Source: "DEV.TO"}), 2)
	require.Empty(t, FilterPosts(posts, Filter{Tag: "go", Source: "medium"}))

	require.Equal(t, []string{"Go", "rust", "sql", "tips"}, Tags(posts))
	require.Equal(t, []string{"Medium", "dev.to"}, Sources(posts))
	require.Equal(t, "dev.to", SourceName("https://www.dev.to/ann"))
}
