package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"Portfolio/internal/auth"
	"Portfolio/internal/model"
)

// identifyFunc позволяет задать личность запроса прямо в тесте
type identifyFunc func(r *http.Request) auth.Identity

func (f identifyFunc) Identify(r *http.Request) auth.Identity { return f(r) }

func guest(*http.Request) auth.Identity { return auth.Identity{Tier: model.TierGuest} }

func user(*http.Request) auth.Identity {
	return auth.Identity{Email: "ann@example.com", Tier: model.TierAuthenticated}
}

func admin(*http.Request) auth.Identity {
	return auth.Identity{Email: "root@example.com", Tier: model.TierAdmin}
}

// backend записывает пришедшие запросы и отвечает заданным телом
type backend struct {
	*httptest.Server
	mu      sync.Mutex
	hits    []*http.Request
	bodies  []string
	status  int
	payload string
}

func newBackend(t *testing.T, status int, payload string) *backend {
	b := &backend{status: status, payload: payload}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.hits = append(b.hits, r)
		b.bodies = append(b.bodies, string(data))
		w.WriteHeader(b.status)
		_, _ = w.Write([]byte(b.payload))
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) requests() ([]*http.Request, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*http.Request(nil), b.hits...), append([]string(nil), b.bodies...)
}

func newRouter(b *backend, id Identifier, adminPaths ...string) *mux.Router {
	g := New(b.Client(), b.URL, id, NewLimiter(), nil, adminPaths, zerolog.Nop())
	r := mux.NewRouter()
	r.Handle("/api/gateway/{path:.*}", g).Methods(http.MethodGet, http.MethodPost)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// Неизвестный путь даёт 404 и ничего не пересылает
func TestGateway_UnmappedPath(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"ok":true}`)
	rec := do(newRouter(b, identifyFunc(admin)), http.MethodGet, "/api/gateway/admin/secrets", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	hits, _ := b.requests()
	require.Empty(t, hits)
}

// Защищённый путь без сессии даёт 401 до обращения к маршруту
func TestGateway_ProtectedWithoutSession(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"ok":true}`)
	rec := do(newRouter(b, identifyFunc(guest)), http.MethodGet, "/api/gateway/weather?lat=1&lon=2", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	hits, _ := b.requests()
	require.Empty(t, hits)
}

func TestGateway_AdminPath(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"ok":true}`)
	rec := do(newRouter(b, identifyFunc(user), "blog/ingest"), http.MethodPost, "/api/gateway/blog/ingest", `{}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(newRouter(b, identifyFunc(guest), "blog/ingest"), http.MethodPost, "/api/gateway/blog/ingest", `{}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	hits, _ := b.requests()
	require.Empty(t, hits)

	rec = do(newRouter(b, identifyFunc(admin), "blog/ingest"), http.MethodPost, "/api/gateway/blog/ingest", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Unlimited, rec.Header().Get(RateLimitHeader))
}

// Метод, query, заголовки и тело пересылаются как есть, статус и JSON возвращаются без изменений
func TestGateway_Forwards(t *testing.T) {
	b := newBackend(t, http.StatusCreated, `{"id":7}`)
	router := newRouter(b, identifyFunc(user))

	req := httptest.NewRequest(http.MethodGet, "/api/gateway/github/repos?username=ann", nil)
	req.Header.Set("X-Custom", "yes")
	req.Header.Set(auth.TierHeader, "admin")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"id":7}`, rec.Body.String())
	require.Equal(t, "authenticated", rec.Header().Get(auth.TierHeader))
	require.Equal(t, "1000", rec.Header().Get(RateLimitHeader))

	hits, _ := b.requests()
	require.Len(t, hits, 1)
	hit := hits[0]
	require.Equal(t, "/api/github/repos", hit.URL.Path)
	require.Equal(t, "ann", hit.URL.Query().Get("username"))
	require.Equal(t, "yes", hit.Header.Get("X-Custom"))
	require.Equal(t, "authenticated", hit.Header.Get(auth.TierHeader))

	rec = do(newRouter(b, identifyFunc(guest)), http.MethodPost, "/api/gateway/blog/ingest", `{"title":"x"}`)
	require.Equal(t, "100", rec.Header().Get(RateLimitHeader))
	hits, bodies := b.requests()
	require.Equal(t, `{"title":"x"}`, bodies[1])
	require.Equal(t, http.MethodPost, hits[1].Method)
}

func TestGateway_NonJSONBackend(t *testing.T) {
	b := newBackend(t, http.StatusOK, "<html>oops</html>")
	rec := do(newRouter(b, identifyFunc(user)), http.MethodGet, "/api/gateway/weather", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestGateway_TransportError(t *testing.T) {
	g := New(http.DefaultClient, "http://127.0.0.1:1", identifyFunc(user), NewLimiter(), nil, nil, zerolog.Nop())
	r := mux.NewRouter()
	r.Handle("/api/gateway/{path:.*}", g)
	rec := do(r, http.MethodGet, "/api/gateway/weather", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGateway_RateLimited(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"ok":true}`)
	router := newRouter(b, identifyFunc(guest))
	for i := 0; i < 100; i++ {
		rec := do(router, http.MethodPost, "/api/gateway/blog/ingest", `{}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(router, http.MethodPost, "/api/gateway/blog/ingest", `{}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	hits, _ := b.requests()
	require.Len(t, hits, 100)
}

// гость не получает новую корзину, подменяя X-Forwarded-For
func TestGateway_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"ok":true}`)
	router := newRouter(b, identifyFunc(guest))
	send := func(i int) int {
		req := httptest.NewRequest(http.MethodPost, "/api/gateway/blog/ingest", strings.NewReader(`{}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i%250))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	for i := 0; i < 100; i++ {
		require.Equal(t, http.StatusOK, send(i))
	}
	require.Equal(t, http.StatusTooManyRequests, send(100))
}

func TestLimiter_AdminUnlimitedAndSweep(t *testing.T) {
	l := NewLimiter()
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 2000; i++ {
		require.True(t, l.Allow("root", model.TierAdmin))
	}
	require.True(t, l.Allow("1.2.3.4", model.TierGuest))
	require.True(t, l.Allow("ann", model.TierAuthenticated))

	now = now.Add(11 * time.Minute)
	require.Equal(t, 2, l.Sweep(10*time.Minute))
	require.Equal(t, 0, l.Sweep(10*time.Minute))
}

func TestClientIP(t *testing.T) {
	ips, err := NewIPResolver([]string{"10.0.0.0/8", " 192.168.1.1 ", ""})
	require.NoError(t, err)

	cases := []struct {
		name   string
		remote string
		fwd    string
		want   string
	}{
		{"без заголовка", "10.0.0.1:5555", "", "10.0.0.1"},
		{"недоверенный источник", "203.0.113.7:80", "198.51.100.1", "203.0.113.7"},
		{"через доверенный прокси", "10.0.0.1:5555", "203.0.113.9, 10.0.0.2", "203.0.113.9"},
		{"подмена слева не помогает", "10.0.0.1:5555", "1.1.1.1, 203.0.113.9", "203.0.113.9"},
		{"одиночный адрес прокси", "192.168.1.1:80", "203.0.113.5", "203.0.113.5"},
		{"мусор в цепочке", "10.0.0.1:5555", "garbage, 10.0.0.3", "10.0.0.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.fwd != "" {
				req.Header.Set("X-Forwarded-For", tc.fwd)
			}
			require.Equal(t, tc.want, ips.ClientIP(req))
		})
	}

	// без настроенных прокси заголовок игнорируется
	var none *IPResolver
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "10.0.0.1", none.ClientIP(req))

	_, err = NewIPResolver([]string{"10.0.0.0/99"})
	require.Error(t, err)
}
