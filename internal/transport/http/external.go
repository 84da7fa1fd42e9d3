package http

import (
	"errors"
	"net/http"

	"Portfolio/internal/github"
	"Portfolio/internal/weather"
)

// githubCacheControl кеширование списка репозиториев на CDN
const githubCacheControl = "public, s-maxage=3600, stale-while-revalidate"

// Weather обрабатывает GET /api/weather?lat=&lon=
// 1. Проверяет наличие, числовой формат и диапазон координат (400)
// 2. Получает прогноз через кеш или у провайдера (500 при ошибке)
// 3. Отдаёт JSON провайдера с заголовком Cache-Control
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := weather.ParseCoords(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	data, err := h.d.Weather.Forecast(r.Context(), lat, lon)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": weather.ErrUpstream.Error()})
		return
	}
	w.Header().Set("Cache-Control", h.d.Weather.CacheControl())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GitHubRepos обрабатывает GET /api/github/repos?username=
func (h *Handler) GitHubRepos(w http.ResponseWriter, r *http.Request) {
	resp, err := h.d.GitHub.ListRepos(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		var ge *github.Error
		msg := "Failed to fetch repositories"
		if errors.As(err, &ge) {
			msg = ge.Message
		} else {
			h.d.Log.Error().Err(err).Msg("github repos request failed")
		}
		writeJSON(w, github.StatusOf(err), map[string]string{"error": msg})
		return
	}
	w.Header().Set("Cache-Control", githubCacheControl)
	writeJSON(w, http.StatusOK, resp)
}
