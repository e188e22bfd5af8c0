package screen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	mu  sync.Mutex
	ops []Operation
	ctx []context.Context
}

func (s *stubRunner) Run(ctx context.Context, op Operation) error {
	if _, err := ParseOperation(string(op)); err != nil {
		return err
	}
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.ctx = append(s.ctx, ctx)
	s.mu.Unlock()
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *stubRunner, *Forms) {
	t.Helper()
	hub := newHub(zerolog.Nop())
	t.Cleanup(hub.Stop)

	run := &stubRunner{}
	forms := NewForms()
	r := &Router{controller: run, forms: forms, hub: hub}
	return r.Routes(), run, forms
}

func postForm(h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_BindForm(t *testing.T) {
	h, _, forms := newTestRouter(t)

	rec := postForm(h, "/forms/login", url.Values{"name": {"alice"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Credentials{Name: "alice"}, forms.Login.Value())

	rec = postForm(h, "/forms/login", url.Values{"password": {"pw1"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Credentials{Name: "alice", Password: "pw1"}, forms.Login.Value(), "absent fields keep their value")

	rec = postForm(h, "/forms/login", url.Values{"name": {""}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Credentials{Password: "pw1"}, forms.Login.Value(), "an empty field clears the value")

	assert.Equal(t, Credentials{}, forms.Register.Value())
}

func TestRouter_BindForm_UnknownForm(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := postForm(h, "/forms/logout", url.Values{"name": {"alice"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Action(t *testing.T) {
	h, run, _ := newTestRouter(t)

	for _, op := range []string{"register", "login", "logout"} {
		rec := postForm(h, "/actions/"+op, nil)
		assert.Equal(t, http.StatusAccepted, rec.Code, op)
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	assert.Equal(t, []Operation{OpRegister, OpLogin, OpLogout}, run.ops)
	for _, ctx := range run.ctx {
		assert.NoError(t, ctx.Err())
	}
}

func TestRouter_Action_Unknown(t *testing.T) {
	h, run, _ := newTestRouter(t)

	rec := postForm(h, "/actions/delete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, run.ops)
}

func TestRouter_Page(t *testing.T) {
	h, _, forms := newTestRouter(t)
	forms.Login.Set(Credentials{Name: "alice", Password: "pw1"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `data-action="register"`)
	assert.Contains(t, body, `data-action="login"`)
	assert.Contains(t, body, `data-action="logout"`)
	assert.Contains(t, body, `value="alice"`)
	assert.NotContains(t, body, "pw1", "stored passwords never reach the page")
	assert.Contains(t, body, `/notifications`)
}

func TestHealthHandler(t *testing.T) {
	hub := newHub(zerolog.Nop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	rec := httptest.NewRecorder()
	NewHealthHandler(hub)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "serving", body["status"])
	assert.EqualValues(t, 0, body["pages"])
}
