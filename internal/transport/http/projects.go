package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"Portfolio/internal/editor"
	"Portfolio/internal/github"
	"Portfolio/internal/model"
	"Portfolio/internal/ordering"
)

// ListProjects обрабатывает GET /api/projects: видимые проекты в каноническом порядке
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Projects.ListVisible(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": nonNil(list)})
}

// FeaturedProjects обрабатывает GET /api/projects/featured
func (h *Handler) FeaturedProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Projects.Featured(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": nonNil(list)})
}

// ProjectsByType обрабатывает GET /api/projects/type/{type}
func (h *Handler) ProjectsByType(w http.ResponseWriter, r *http.Request) {
	t := model.ProjectType(mux.Vars(r)["type"])
	if !t.Valid() {
		badRequest(w, "invalid project type")
		return
	}
	list, err := h.d.Projects.ByType(r.Context(), t)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": nonNil(list)})
}

// GetProject обрабатывает GET /api/projects/{id}; скрытый проект для посетителя не существует
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.d.Projects.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !p.Visible {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AdminListProjects обрабатывает GET /api/admin/projects: все проекты, включая скрытые
func (h *Handler) AdminListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Projects.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": nonNil(list)})
}

// AdminCreateProject обрабатывает POST /api/admin/projects
// 1. Декодирует тело в буфер формы, помечая присланные поля
// 2. Контроллер проверяет заголовок и создаёт проект с умолчаниями
// 3. Возвращает 201 и созданный проект
func (h *Handler) AdminCreateProject(w http.ResponseWriter, r *http.Request) {
	d := editor.NewDraft()
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctrl := editor.NewController(h.d.Projects)
	p, err := ctrl.Create(r.Context(), d)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// AdminUpdateProject обрабатывает PATCH /api/admin/projects/{id}
// 1. Загружает проект и открывает его в контроллере редактирования
// 2. Накладывает присланные поля на буфер
// 3. Отправляет частичный патч только из затронутых полей
func (h *Handler) AdminUpdateProject(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "invalid request body")
		return
	}
	p, err := h.d.Projects.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ctrl := editor.NewController(h.d.Projects)
	ctrl.BeginEdit(*p)
	if err := ctrl.Edit(func(d *editor.Draft) error { return json.Unmarshal(body, d) }); err != nil {
		ctrl.Cancel()
		badRequest(w, "invalid request body")
		return
	}
	updated, err := ctrl.Submit(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AdminDeleteProject обрабатывает DELETE /api/admin/projects/{id}?confirm=true.
// Без подтверждения удаление не выполняется
func (h *Handler) AdminDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctrl := editor.NewController(h.d.Projects)
	ctrl.RequestDelete(id)
	if r.URL.Query().Get("confirm") != "true" {
		ctrl.CancelDelete()
		badRequest(w, "deletion must be confirmed with confirm=true")
		return
	}
	removed, err := ctrl.ConfirmDelete(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": removed, "removed": true})
}

// AdminMoveProject обрабатывает POST /api/admin/projects/{id}/move с телом {"direction":"up"|"down"}.
// На краю списка возвращается пустой список изменений
func (h *Handler) AdminMoveProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	dir, ok := ordering.ParseDirection(req.Direction)
	if !ok {
		badRequest(w, "direction must be up or down")
		return
	}
	// снимок до перемещения, к нему применяются обновления рангов для ответа
	all, err := h.d.Projects.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ctrl := editor.NewController(h.d.Projects)
	id := mux.Vars(r)["id"]
	var updates []model.OrderUpdate
	if dir == ordering.Up {
		updates, err = ctrl.MoveUp(r.Context(), id)
	} else {
		updates, err = ctrl.MoveDown(r.Context(), id)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if updates == nil {
		updates = []model.OrderUpdate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"updates":  updates,
		"projects": nonNil(ordering.Sort(ordering.Apply(all, updates))),
	})
}

// AdminToggleVisible обрабатывает PATCH /api/admin/projects/{id}/visibility
func (h *Handler) AdminToggleVisible(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, (*editor.Controller).ToggleVisible)
}

// AdminToggleFeatured обрабатывает PATCH /api/admin/projects/{id}/featured
func (h *Handler) AdminToggleFeatured(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, (*editor.Controller).ToggleFeatured)
}

type toggleFunc func(c *editor.Controller, ctx context.Context, p model.Project) (*model.Project, error)

// toggle переключает флаг по текущему состоянию проекта в хранилище
func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn toggleFunc) {
	p, err := h.d.Projects.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	updated, err := fn(editor.NewController(h.d.Projects), r.Context(), *p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AdminSyncGitHub обрабатывает POST /api/admin/projects/sync-github.
// Тело {"username": "...", "repos": [...]}; без repos список загружается из GitHub
func (h *Handler) AdminSyncGitHub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string        `json:"username"`
		Repos    []github.Repo `json:"repos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		badRequest(w, "invalid request body")
		return
	}
	username := req.Username
	repos := req.Repos
	if repos == nil {
		resp, err := h.d.GitHub.ListRepos(r.Context(), req.Username)
		if err != nil {
			writeJSON(w, github.StatusOf(err), map[string]string{"error": err.Error()})
			return
		}
		repos, username = resp.Repos, resp.Username
	}
	if username == "" {
		badRequest(w, "username is required")
		return
	}
	writeJSON(w, http.StatusOK, h.d.Projects.BulkSync(r.Context(), repos, username))
}

func nonNil(list []model.Project) []model.Project {
	if list == nil {
		return []model.Project{}
	}
	return list
}
