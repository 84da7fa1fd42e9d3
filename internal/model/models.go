package model

// DefaultOrder — ранг проекта без явного порядка (самый низкий приоритет)
const DefaultOrder = 9999

// ProjectType тип записи портфолио
type ProjectType string

const (
	TypeCaseStudy   ProjectType = "case-study"
	TypeRepository  ProjectType = "repository"
	TypeLiveApp     ProjectType = "live-app"
	TypeSideProject ProjectType = "side-project"
)

// Valid проверяет, что тип входит в допустимый набор
func (t ProjectType) Valid() bool {
	switch t {
	case TypeCaseStudy, TypeRepository, TypeLiveApp, TypeSideProject:
		return true
	}
	return false
}

// ProjectStatus статус проекта
type ProjectStatus string

const (
	StatusActive     ProjectStatus = "active"
	StatusFeatured   ProjectStatus = "featured"
	StatusInProgress ProjectStatus = "in-progress"
	StatusArchived   ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusActive, StatusFeatured, StatusInProgress, StatusArchived:
		return true
	}
	return false
}

// RepoAccess режим доступа к репозиторию проекта
type RepoAccess string

const (
	AccessPublic        RepoAccess = "public"
	AccessPrivate       RepoAccess = "private"
	AccessRequestAccess RepoAccess = "request-access"
)

func (a RepoAccess) Valid() bool {
	switch a {
	case AccessPublic, AccessPrivate, AccessRequestAccess:
		return true
	}
	return false
}

// Project представляет запись портфолио (таблица projects)
// Временные метки в миллисекундах эпохи, выставляются только слоем хранилища
type Project struct {
	StoreID        int64         `db:"_id" json:"_id"`
	ID             string        `db:"id" json:"id"`
	Title          string        `db:"title" json:"title"`
	Description    string        `db:"description" json:"description"`
	Tags           []string      `db:"tags" json:"tags"`
	Year           string        `db:"year" json:"year"`
	Type           ProjectType   `db:"type" json:"type"`
	Status         ProjectStatus `db:"status" json:"status"`
	Visible        bool          `db:"visible" json:"visible"`
	Featured       bool          `db:"featured" json:"featured"`
	Order          *int          `db:"sort_order" json:"order,omitempty"`
	Image          *string       `db:"image" json:"image,omitempty"`
	Slug           *string       `db:"slug" json:"slug,omitempty"`
	Role           *string       `db:"role" json:"role,omitempty"`
	Duration       *string       `db:"duration" json:"duration,omitempty"`
	Metrics        []string      `db:"metrics" json:"metrics,omitempty"`
	GithubURL      *string       `db:"github_url" json:"githubUrl,omitempty"`
	RepoAccess     RepoAccess    `db:"repo_access" json:"repoAccess"`
	HideRepoButton bool          `db:"hide_repo_button" json:"hideRepoButton"`
	Stars          *int          `db:"stars" json:"stars,omitempty"`
	Language       *string       `db:"language" json:"language,omitempty"`
	DemoURL        *string       `db:"demo_url" json:"demoUrl,omitempty"`
	AppURL         *string       `db:"app_url" json:"appUrl,omitempty"`
	Link           *string       `db:"link" json:"link,omitempty"`
	Note           *string       `db:"note" json:"note,omitempty"`
	CreatedAt      int64         `db:"created_at" json:"createdAt"`
	UpdatedAt      int64         `db:"updated_at" json:"updatedAt"`
}

// ProjectPatch — частичное обновление проекта
// nil означает «поле не менялось», такие поля не трогаются в хранилище
type ProjectPatch struct {
	Title          *string        `json:"title,omitempty"`
	Description    *string        `json:"description,omitempty"`
	Tags           *[]string      `json:"tags,omitempty"`
	Year           *string        `json:"year,omitempty"`
	Type           *ProjectType   `json:"type,omitempty"`
	Status         *ProjectStatus `json:"status,omitempty"`
	Visible        *bool          `json:"visible,omitempty"`
	Featured       *bool          `json:"featured,omitempty"`
	Order          *int           `json:"order,omitempty"`
	GithubURL      *string        `json:"githubUrl,omitempty"`
	RepoAccess     *RepoAccess    `json:"repoAccess,omitempty"`
	HideRepoButton *bool          `json:"hideRepoButton,omitempty"`
	DemoURL        *string        `json:"demoUrl,omitempty"`
	AppURL         *string        `json:"appUrl,omitempty"`
}

// Apply накладывает патч на копию проекта
func (pt ProjectPatch) Apply(p Project) Project {
	if pt.Title != nil {
		p.Title = *pt.Title
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Tags != nil {
		p.Tags = append([]string(nil), (*pt.Tags)...)
	}
	if pt.Year != nil {
		p.Year = *pt.Year
	}
	if pt.Type != nil {
		p.Type = *pt.Type
	}
	if pt.Status != nil {
		p.Status = *pt.Status
	}
	if pt.Visible != nil {
		p.Visible = *pt.Visible
	}
	if pt.Featured != nil {
		p.Featured = *pt.Featured
	}
	if pt.Order != nil {
		o := *pt.Order
		p.Order = &o
	}
	if pt.GithubURL != nil {
		p.GithubURL = pt.GithubURL
	}
	if pt.RepoAccess != nil {
		p.RepoAccess = *pt.RepoAccess
	}
	if pt.HideRepoButton != nil {
		p.HideRepoButton = *pt.HideRepoButton
	}
	if pt.DemoURL != nil {
		p.DemoURL = pt.DemoURL
	}
	if pt.AppURL != nil {
		p.AppURL = pt.AppURL
	}
	return p
}

// Empty сообщает, что патч не меняет ни одного поля
func (pt ProjectPatch) Empty() bool {
	return pt == (ProjectPatch{})
}

// OrderUpdate представляет изменение ранга проекта
// ID внешний идентификатор проекта, Order новый ранг
type OrderUpdate struct {
	ID    string `db:"id" json:"id"`
	Order int    `db:"sort_order" json:"order"`
}

// SyncAction результат синхронизации одного репозитория
type SyncAction string

const (
	SyncCreated SyncAction = "created"
	SyncUpdated SyncAction = "updated"
	SyncError   SyncAction = "error"
)

// SyncResult запись итогового отчёта массовой синхронизации
type SyncResult struct {
	ID     string     `json:"id"`
	Action SyncAction `json:"action"`
	Title  string     `json:"title,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// AccessStatus статус запроса доступа
type AccessStatus string

const (
	AccessPending  AccessStatus = "pending"
	AccessApproved AccessStatus = "approved"
	AccessRejected AccessStatus = "rejected"
)

// AccessRequest запрос посетителя на доступ к закрытому репозиторию (таблица repo_access_requests)
type AccessRequest struct {
	ID         int64        `db:"id" json:"_id"`
	ProjectID  string       `db:"project_id" json:"projectId"`
	Email      string       `db:"email" json:"email"`
	Name       *string      `db:"name" json:"name,omitempty"`
	Company    *string      `db:"company" json:"company,omitempty"`
	Message    *string      `db:"message" json:"message,omitempty"`
	Status     AccessStatus `db:"status" json:"status"`
	CreatedAt  int64        `db:"created_at" json:"createdAt"`
	ApprovedAt *int64       `db:"approved_at" json:"approvedAt,omitempty"`
}
