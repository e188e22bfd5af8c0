package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrasnagy-data/authscreen/internal/shared/config"
)

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()

	api := chi.NewRouter()
	api.Post("/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	api.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	s := NewServer(params{
		Config: cfg,
		Logger: zerolog.Nop(),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		Routes: []Route{
			Mount("/api")(api),
			NewDocsRoute(cfg),
			{Pattern: "/skipped"},
		},
	})
	return s.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Routes(t *testing.T) {
	h := newTestServer(t, &config.Config{Environment: "dev"})

	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodPost, "/api/login", nil)).Code)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authscreen_http_requests_total")

	assert.Equal(t, http.StatusNotFound, serve(h, httptest.NewRequest(http.MethodGet, "/skipped", nil)).Code)
}

func TestServer_RecoversPanics(t *testing.T) {
	h := newTestServer(t, &config.Config{Environment: "dev"})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_CORSWithCredentials(t *testing.T) {
	h := newTestServer(t, &config.Config{AllowedOrigins: []string{"http://localhost:4200"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(h, req)

	assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = serve(h, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Docs(t *testing.T) {
	h := newTestServer(t, &config.Config{Environment: "dev"})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/register"`)
}

func TestNewDocsRoute_Prod(t *testing.T) {
	route := NewDocsRoute(&config.Config{Environment: "prod", SentryDSN: "https://key@sentry.example/1"})
	assert.Nil(t, route.Handler)
}
