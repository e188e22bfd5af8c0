package screen

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

//go:embed templates/*.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/screen.html"))

type (
	// runner triggers an operation without waiting for its outcome
	runner interface {
		Run(ctx context.Context, op Operation) error
	}

	Router struct {
		controller runner
		forms      *Forms
		hub        *Hub
	}

	pageData struct {
		Register Credentials
		Login    Credentials
	}
)

func NewRouter(controller *Controller, forms *Forms, hub *Hub) chi.Router {
	router := &Router{controller: controller, forms: forms, hub: hub}
	return router.Routes()
}

func (r *Router) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.Page)
	router.Post("/forms/{form}", r.BindForm)
	router.Post("/actions/{op}", r.Action)
	router.Get("/notifications", r.hub.ServeWS)
	return router
}

// Page renders the auth screen with the current form values
func (r *Router) Page(w http.ResponseWriter, req *http.Request) {
	logger := hlog.FromRequest(req)

	data := pageData{
		Register: r.forms.Register.Value(),
		Login:    r.forms.Login.Value(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		logger.Error().Err(err).Msg("Failed to execute screen template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// BindForm stores the name and password fields sent by the page. Fields absent from the
// request keep their value, so the page can post a single field on every keystroke.
func (r *Router) BindForm(w http.ResponseWriter, req *http.Request) {
	logger := hlog.FromRequest(req)

	form, err := r.forms.Lookup(chi.URLParam(req, "form"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if err := req.ParseForm(); err != nil {
		logger.Warn().Err(err).Msg("Failed to parse form")
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	if _, ok := req.PostForm["name"]; ok {
		form.SetName(req.PostForm.Get("name"))
	}
	if _, ok := req.PostForm["password"]; ok {
		form.SetPassword(req.PostForm.Get("password"))
	}

	w.WriteHeader(http.StatusNoContent)
}

// Action triggers an operation and answers 202 immediately; the outcome arrives on /notifications
func (r *Router) Action(w http.ResponseWriter, req *http.Request) {
	logger := hlog.FromRequest(req)

	op, err := ParseOperation(chi.URLParam(req, "op"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// the request outlives this handler
	ctx := context.WithoutCancel(req.Context())
	if err := r.controller.Run(ctx, op); err != nil {
		if errors.Is(err, ErrUnknownOperation) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("operation", string(op)).Msg("Failed to trigger operation")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Debug().Str("operation", string(op)).Msg("Operation triggered")
	w.WriteHeader(http.StatusAccepted)
}

// NewHealthHandler reports liveness and the number of pages listening for notifications
func NewHealthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]any{
			"status": "serving",
			"pages":  hub.Connected(),
		}); err != nil {
			hlog.FromRequest(req).Error().Err(err).Msg("Failed to encode health check response")
		}
	}
}
