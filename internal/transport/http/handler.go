package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"Portfolio/internal/access"
	"Portfolio/internal/blog"
	"Portfolio/internal/editor"
	"Portfolio/internal/gateway"
	"Portfolio/internal/github"
	"Portfolio/internal/model"
	"Portfolio/internal/ordering"
	"Portfolio/internal/repository"
	"Portfolio/internal/service"
)

// ProjectsService задаёт интерфейс бизнес-логики проектов для HTTP-слоя.
// Create/Update/Delete/Move используются контроллером редактирования
type ProjectsService interface {
	Get(ctx context.Context, id string) (*model.Project, error)
	ListVisible(ctx context.Context) ([]model.Project, error)
	ListAll(ctx context.Context) ([]model.Project, error)
	Featured(ctx context.Context) ([]model.Project, error)
	ByType(ctx context.Context, t model.ProjectType) ([]model.Project, error)
	Create(ctx context.Context, p model.Project) (*model.Project, error)
	Update(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	Delete(ctx context.Context, id string) error
	Move(ctx context.Context, id string, dir ordering.Direction) ([]model.OrderUpdate, error)
	BulkSync(ctx context.Context, repos []github.Repo, username string) service.SyncReport
}

// AccessService сценарий запроса доступа к репозиторию
type AccessService interface {
	Submit(ctx context.Context, req access.SubmitRequest) (*access.Outcome, error)
	Approve(ctx context.Context, id int64) (*model.AccessRequest, error)
	Reject(ctx context.Context, id int64) (*model.AccessRequest, error)
	ListForProject(ctx context.Context, projectID string) ([]model.AccessRequest, error)
}

// BlogService приём, модерация и трекинг постов блога
type BlogService interface {
	Ingest(ctx context.Context, raw []byte, headerKey string) (*blog.IngestResult, error)
	ListDrafts(ctx context.Context, status string, limit int) ([]model.BlogDraft, error)
	ListPublished(ctx context.Context, limit int) ([]model.BlogDraft, error)
	GetBySlug(ctx context.Context, slug string) (*model.BlogDraft, error)
	UpdateStatus(ctx context.Context, slug string, next model.DraftStatus) (*model.BlogDraft, error)
	IncrementViews(ctx context.Context, slug string) (int, error)
	Track(ctx context.Context, in model.Interaction) bool
	TrackBatch(ctx context.Context, items []model.Interaction) int
}

// WeatherService прогноз погоды с кешированием
type WeatherService interface {
	Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error)
	CacheControl() string
}

// GitHubClient список публичных репозиториев пользователя
type GitHubClient interface {
	ListRepos(ctx context.Context, username string) (*github.ReposResponse, error)
}

// CommunityService гостевая книга и форма обратной связи
type CommunityService interface {
	PostGuestbook(ctx context.Context, f service.GuestbookForm, ip string) (*model.GuestbookEntry, error)
	ListGuestbook(ctx context.Context) ([]model.GuestbookEntry, error)
	ModerateGuestbook(ctx context.Context, id int64, approved bool) error
	SubmitContact(ctx context.Context, f service.ContactForm, ip string) (*model.Contact, error)
	ListContacts(ctx context.Context) ([]model.Contact, error)
}

// TierGuard пропускает запрос только с достаточным уровнем доступа
type TierGuard interface {
	RequireTier(min model.Tier) mux.MiddlewareFunc
}

// Deps зависимости HTTP-слоя
type Deps struct {
	Projects  ProjectsService
	Access    AccessService
	Blog      BlogService
	Weather   WeatherService
	GitHub    GitHubClient
	Community CommunityService
	Guard     TierGuard
	Gateway   http.Handler
	// IPs определяет адрес клиента для лимитов гостевой книги и контактов; nil означает RemoteAddr
	IPs *gateway.IPResolver
	// Ready проверяет доступность хранилища для /readyz; nil означает «готов»
	Ready func(ctx context.Context) error
	Log   zerolog.Logger
}

// Handler содержит зависимости и реализует HTTP-эндпоинты портфолио
type Handler struct {
	d Deps
}

// NewHandler создаёт новый HTTP Handler
func NewHandler(d Deps) *Handler {
	return &Handler{d: d}
}

// RegisterRoutes регистрирует маршруты API
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Эндпоинты для проверки здоровья и готовности сервиса
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.HandleFunc("/readyz", h.Readyz).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/projects", h.ListProjects).Methods("GET")
	api.HandleFunc("/projects/featured", h.FeaturedProjects).Methods("GET")
	api.HandleFunc("/projects/type/{type}", h.ProjectsByType).Methods("GET")
	api.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")
	api.HandleFunc("/projects/{id}/access-requests", h.SubmitAccessRequest).Methods("POST")

	api.HandleFunc("/blog/posts", h.ListPosts).Methods("GET")
	api.HandleFunc("/blog/posts/{slug}", h.GetPost).Methods("GET")
	api.HandleFunc("/blog/posts/{slug}/views", h.IncrementViews).Methods("POST")
	api.HandleFunc("/blog/track", h.Track).Methods("POST")
	api.HandleFunc("/blog/ingest", h.Ingest).Methods("POST")
	api.HandleFunc("/blog/ingest", h.IngestInfo).Methods("GET")

	api.HandleFunc("/weather", h.Weather).Methods("GET")
	api.HandleFunc("/github/repos", h.GitHubRepos).Methods("GET")
	if h.d.Gateway != nil {
		api.Handle("/gateway/{path:.*}", h.d.Gateway).Methods("GET", "POST")
	}

	api.HandleFunc("/guestbook", h.ListGuestbook).Methods("GET")
	api.HandleFunc("/guestbook", h.PostGuestbook).Methods("POST")
	api.HandleFunc("/contact", h.SubmitContact).Methods("POST")

	// Админские маршруты: уровень заново вычисляется из токена на каждый запрос
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.d.Guard.RequireTier(model.TierAdmin))
	admin.HandleFunc("/projects", h.AdminListProjects).Methods("GET")
	admin.HandleFunc("/projects", h.AdminCreateProject).Methods("POST")
	admin.HandleFunc("/projects/sync-github", h.AdminSyncGitHub).Methods("POST")
	admin.HandleFunc("/projects/{id}", h.AdminUpdateProject).Methods("PATCH")
	admin.HandleFunc("/projects/{id}", h.AdminDeleteProject).Methods("DELETE")
	admin.HandleFunc("/projects/{id}/move", h.AdminMoveProject).Methods("POST")
	admin.HandleFunc("/projects/{id}/visibility", h.AdminToggleVisible).Methods("PATCH")
	admin.HandleFunc("/projects/{id}/featured", h.AdminToggleFeatured).Methods("PATCH")
	admin.HandleFunc("/projects/{id}/access-requests", h.AdminListAccessRequests).Methods("GET")
	admin.HandleFunc("/access-requests/{id}/approve", h.AdminApproveAccess).Methods("POST")
	admin.HandleFunc("/access-requests/{id}/reject", h.AdminRejectAccess).Methods("POST")
	admin.HandleFunc("/blog/drafts", h.AdminListDrafts).Methods("GET")
	admin.HandleFunc("/blog/drafts/{slug}/status", h.AdminUpdateDraftStatus).Methods("PATCH")
	admin.HandleFunc("/contacts", h.AdminListContacts).Methods("GET")
	admin.HandleFunc("/guestbook/{id}", h.AdminModerateGuestbook).Methods("PATCH")
}

// Коды ошибок API
const (
	codeInternal    = 1
	codeInvalid     = 2
	codeNotFound    = 3
	codeForbidden   = 4
	codeRateLimited = 5
)

// ErrorResponse модель ошибки API
type ErrorResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, ErrorResponse{codeInvalid, msg, map[string]interface{}{}})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, ErrorResponse{codeNotFound, "errors.common.notFound", map[string]interface{}{}})
}

// writeServiceError сопоставляет ошибку сервиса статусу ответа
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ordering.ErrNotFound):
		notFound(w)
	case errors.Is(err, repository.ErrDuplicateID):
		writeError(w, http.StatusConflict, ErrorResponse{codeInvalid, err.Error(), map[string]interface{}{}})
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrorResponse{codeRateLimited, err.Error(), map[string]interface{}{}})
	case errors.Is(err, access.ErrPrivateProject):
		writeError(w, http.StatusForbidden, ErrorResponse{codeForbidden, err.Error(), map[string]interface{}{}})
	case isValidation(err):
		badRequest(w, err.Error())
	default:
		h.d.Log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		msg := err.Error()
		if msg == "" {
			msg = "Internal server error"
		}
		writeError(w, http.StatusInternalServerError, ErrorResponse{codeInternal, msg, map[string]interface{}{}})
	}
}

// Healthz возвращает статус работы сервиса
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Readyz возвращает готовность сервиса
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.d.Ready != nil {
		if err := h.d.Ready(r.Context()); err != nil {
			h.d.Log.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// queryInt читает целый query-параметр, def при отсутствии или ошибке
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// pathID извлекает числовой id из пути, ok=false при ошибке или id <= 0
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// isValidation ошибки входных данных, отдаются с кодом 400
func isValidation(err error) bool {
	var missing *blog.MissingFieldsError
	return service.IsValidationError(err) ||
		errors.Is(err, editor.ErrTitleRequired) ||
		errors.Is(err, editor.ErrInvalidEnum) ||
		errors.Is(err, repository.ErrEmptyTitle) ||
		errors.Is(err, access.ErrInvalidRequest) ||
		errors.Is(err, blog.ErrInvalidStatus) ||
		errors.Is(err, blog.ErrInvalidTransition) ||
		errors.Is(err, blog.ErrInvalidBody) ||
		errors.As(err, &missing)
}
