package model

import "encoding/json"

// DraftStatus статус черновика блога
type DraftStatus string

const (
	DraftNew       DraftStatus = "new"
	DraftReviewed  DraftStatus = "reviewed"
	DraftApproved  DraftStatus = "approved"
	DraftPublished DraftStatus = "published"
	DraftRejected  DraftStatus = "rejected"
)

// draftTransitions допустимые переходы жизненного цикла черновика
var draftTransitions = map[DraftStatus][]DraftStatus{
	DraftNew:       {DraftReviewed, DraftRejected},
	DraftReviewed:  {DraftApproved, DraftRejected},
	DraftApproved:  {DraftPublished, DraftRejected},
	DraftRejected:  {DraftNew},
	DraftPublished: {},
}

// Valid проверяет, что статус известен
func (s DraftStatus) Valid() bool {
	_, ok := draftTransitions[s]
	return ok
}

// CanTransition сообщает, разрешён ли переход из s в next
func (s DraftStatus) CanTransition(next DraftStatus) bool {
	for _, st := range draftTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// DraftMetadata вспомогательные метрики черновика
type DraftMetadata struct {
	ReadTime  *int     `json:"readTime,omitempty"`
	Views     *int     `json:"views,omitempty"`
	AISummary *string  `json:"aiSummary,omitempty"`
	AIScore   *float64 `json:"aiScore,omitempty"`
}

// BlogDraft черновик/пост блога (таблица blog_drafts)
type BlogDraft struct {
	ID           int64         `db:"id" json:"_id"`
	Title        string        `db:"title" json:"title"`
	Slug         string        `db:"slug" json:"slug"`
	Content      string        `db:"content" json:"content"`
	CanonicalURL string        `db:"canonical_url" json:"canonicalUrl"`
	Source       string        `db:"source" json:"source"`
	Author       *string       `db:"author" json:"author,omitempty"`
	Tags         []string      `db:"tags" json:"tags"`
	Quality      *int          `db:"quality" json:"quality,omitempty"`
	Status       DraftStatus   `db:"status" json:"status"`
	PublishDate  *int64        `db:"publish_date" json:"publishDate,omitempty"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
	Metadata     DraftMetadata `db:"metadata" json:"metadata"`
	CreatedAt    int64         `db:"created_at" json:"createdAt"`
	UpdatedAt    int64         `db:"updated_at" json:"updatedAt"`
}

// Tier уровень доступа пользователя
type Tier string

const (
	TierGuest         Tier = "guest"
	TierAuthenticated Tier = "authenticated"
	TierAdmin         Tier = "admin"
)

// Rank возвращает числовой вес уровня для сравнения
func (t Tier) Rank() int {
	switch t {
	case TierAdmin:
		return 2
	case TierAuthenticated:
		return 1
	}
	return 0
}

// AtLeast сообщает, что уровень t не ниже min
func (t Tier) AtLeast(min Tier) bool {
	return t.Rank() >= min.Rank()
}

// User пользователь, прошедший вход (таблица users)
type User struct {
	ID        int64   `db:"id" json:"_id"`
	Email     string  `db:"email" json:"email"`
	Name      *string `db:"name" json:"name,omitempty"`
	Image     *string `db:"image" json:"image,omitempty"`
	IsAdmin   bool    `db:"is_admin" json:"isAdmin"`
	Tier      Tier    `db:"tier" json:"tier"`
	CreatedAt int64   `db:"created_at" json:"createdAt"`
}

// Contact сообщение из формы обратной связи (таблица contacts)
type Contact struct {
	ID        int64   `db:"id" json:"_id"`
	Name      string  `db:"name" json:"name"`
	Email     string  `db:"email" json:"email"`
	Message   string  `db:"message" json:"message"`
	IP        *string `db:"ip" json:"-"`
	CreatedAt int64   `db:"created_at" json:"createdAt"`
}

// GuestbookEntry запись гостевой книги (таблица guestbook)
type GuestbookEntry struct {
	ID        int64   `db:"id" json:"_id"`
	Name      string  `db:"name" json:"name"`
	Message   string  `db:"message" json:"message"`
	IP        *string `db:"ip" json:"-"`
	Moderated bool    `db:"moderated" json:"moderated"`
	CreatedAt int64   `db:"created_at" json:"createdAt"`
}

// Event доменное событие, публикуемое в NATS и сохраняемое в ClickHouse
type Event struct {
	Kind     string          `json:"kind"`
	Entity   string          `json:"entity"`
	EntityID string          `json:"entityId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       int64           `json:"at"`
}

// InteractionMetadata дополнительные сведения о взаимодействии с постом
type InteractionMetadata struct {
	Tag         *string `json:"tag,omitempty"`
	SearchQuery *string `json:"searchQuery,omitempty"`
	FilterType  *string `json:"filterType,omitempty"`
	FilterValue *string `json:"filterValue,omitempty"`
	UserAgent   *string `json:"userAgent,omitempty"`
	Referrer    *string `json:"referrer,omitempty"`
}

// Interaction событие трекинга блога (клик, скролл, время чтения и т.п.)
type Interaction struct {
	PostSlug        string               `json:"postSlug"`
	InteractionType string               `json:"interactionType"`
	Value           *float64             `json:"value,omitempty"`
	Metadata        *InteractionMetadata `json:"metadata,omitempty"`
	SessionID       *string              `json:"sessionId,omitempty"`
	CreatedAt       int64                `json:"createdAt"`
}

// NewEvent собирает событие с JSON-представлением payload
func NewEvent(kind, entity, entityID string, payload any, at int64) Event {
	e := Event{Kind: kind, Entity: entity, EntityID: entityID, At: at}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Payload = data
		}
	}
	return e
}
