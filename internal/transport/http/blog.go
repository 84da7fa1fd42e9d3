package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"Portfolio/internal/blog"
	"Portfolio/internal/model"
)

// ListPosts обрабатывает GET /api/blog/posts?q=&tag=&source=&limit=.
// Помимо постов возвращает все теги и источники опубликованных постов для фильтров
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.d.Blog.ListPublished(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	filtered := blog.FilterPosts(posts, blog.Filter{Query: q.Get("q"), Tag: q.Get("tag"), Source: q.Get("source")})
	if filtered == nil {
		filtered = []model.BlogDraft{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"posts":   filtered,
		"tags":    blog.Tags(posts),
		"sources": blog.Sources(posts),
	})
}

// GetPost обрабатывает GET /api/blog/posts/{slug}; неопубликованные посты не отдаются
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.d.Blog.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if post.Status != model.DraftPublished {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// IncrementViews обрабатывает POST /api/blog/posts/{slug}/views
func (h *Handler) IncrementViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.d.Blog.IncrementViews(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"views": views})
}

// Track обрабатывает POST /api/blog/track: одно взаимодействие или {"events":[...]}.
// Трекинг никогда не возвращает ошибку клиенту
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var batch struct {
		Events []model.Interaction `json:"events"`
	}
	if err := json.Unmarshal(body, &batch); err == nil && batch.Events != nil {
		n := h.d.Blog.TrackBatch(r.Context(), batch.Events)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tracked": n})
		return
	}
	var in model.Interaction
	tracked := 0
	if err := json.Unmarshal(body, &in); err == nil && h.d.Blog.Track(r.Context(), in) {
		tracked = 1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tracked": tracked})
}

// Ingest обрабатывает POST /api/blog/ingest от конвейера публикации.
// Ключ берётся из поля apiKey тела или заголовка x-api-key
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(r.Body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": blog.ErrInvalidBody.Error()})
		return
	}
	res, err := h.d.Blog.Ingest(r.Context(), raw.Bytes(), r.Header.Get("x-api-key"))
	if err != nil {
		var missing *blog.MissingFieldsError
		switch {
		case errors.Is(err, blog.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		case errors.Is(err, blog.ErrInvalidBody), errors.As(err, &missing):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.d.Log.Error().Err(err).Msg("blog ingest failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error", "details": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": res.Message(),
		"data":    res,
	})
}

// IngestInfo обрабатывает GET /api/blog/ingest: описание эндпоинта
func (h *Handler) IngestInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, blog.Info())
}

// AdminListDrafts обрабатывает GET /api/admin/blog/drafts?status=&limit=
func (h *Handler) AdminListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.d.Blog.ListDrafts(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit", 0))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []model.BlogDraft{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"drafts": drafts})
}

// AdminUpdateDraftStatus обрабатывает PATCH /api/admin/blog/drafts/{slug}/status с телом {"status":"..."}
func (h *Handler) AdminUpdateDraftStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.DraftStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	d, err := h.d.Blog.UpdateStatus(r.Context(), mux.Vars(r)["slug"], req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
