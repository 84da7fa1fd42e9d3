// Пакет gateway проксирует разрешённые логические пути на маршруты API
// с проверкой уровня доступа и ограничением частоты по уровню
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"Portfolio/internal/auth"
	"Portfolio/internal/model"
)

// RateLimitHeader заголовок с лимитом запросов в минуту для уровня
const RateLimitHeader = "x-rate-limit"

// Routes логические пути шлюза и маршруты, на которые они отображаются
var Routes = map[string]string{
	"github/repos": "/api/github/repos",
	"weather":      "/api/weather",
	"blog/ingest":  "/api/blog/ingest",
}

// Protected пути, требующие сессии
var Protected = []string{"github/repos", "weather"}

// Identifier вычисляет личность запроса
type Identifier interface {
	Identify(r *http.Request) auth.Identity
}

// Gateway http.Handler для /api/gateway/{path}
type Gateway struct {
	client    *http.Client
	baseURL   string
	ident     Identifier
	limiter   *Limiter
	ips       *IPResolver
	protected map[string]struct{}
	admin     map[string]struct{}
	log       zerolog.Logger
}

// New создаёт шлюз; baseURL адрес самого API, ips определяет ключ лимита гостя,
// adminPaths пути только для администраторов
func New(client *http.Client, baseURL string, ident Identifier, limiter *Limiter, ips *IPResolver, adminPaths []string, log zerolog.Logger) *Gateway {
	return &Gateway{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		ident:     ident,
		limiter:   limiter,
		ips:       ips,
		protected: set(Protected),
		admin:     set(adminPaths),
		log:       log,
	}
}

func set(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[strings.Trim(s, "/")] = struct{}{}
	}
	return m
}

// ServeHTTP проверяет путь и доступ и пересылает запрос на внутренний маршрут
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(mux.Vars(r)["path"], "/")
	target, ok := Routes[path]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	id := g.ident.Identify(r)
	if _, need := g.protected[path]; need && !id.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	if _, need := g.admin[path]; need && id.Tier != model.TierAdmin {
		status := http.StatusForbidden
		if !id.Authenticated() {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	w.Header().Set(auth.TierHeader, string(id.Tier))
	w.Header().Set(RateLimitHeader, LimitHeader(id.Tier))
	key := id.Email
	if key == "" {
		key = g.ips.ClientIP(r)
	}
	if !g.limiter.Allow(key, id.Tier) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
		return
	}

	status, body, err := g.forward(r, target, id.Tier)
	if err != nil {
		g.log.Error().Err(err).Str("path", path).Msg("gateway forward failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// forward повторяет метод, заголовки, query и тело; ответ обязан быть JSON
func (g *Gateway) forward(r *http.Request, target string, tier model.Tier) (int, []byte, error) {
	u := g.baseURL + target
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, u, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header = r.Header.Clone()
	req.Header.Set(auth.TierHeader, string(tier))

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	if !json.Valid(body) {
		return 0, nil, &nonJSONError{status: resp.StatusCode}
	}
	return resp.StatusCode, body, nil
}

type nonJSONError struct{ status int }

func (e *nonJSONError) Error() string {
	return fmt.Sprintf("backend returned non-JSON response (status %d)", e.status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
