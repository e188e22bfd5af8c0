package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/andrasnagy-data/authscreen/internal/shared/cookie"
	"github.com/andrasnagy-data/authscreen/internal/shared/metrics"
	"github.com/andrasnagy-data/authscreen/internal/shared/middleware"
)

type (
	Router struct {
		service servicer
	}
)

func NewRouter(service servicer) chi.Router {
	router := &Router{service: service}
	return router.Routes()
}

func (r *Router) Routes() chi.Router {
	router := chi.NewRouter()
	router.NotFound(notFound)

	router.Post("/register", r.Register)
	router.Post("/login", r.Login)
	router.With(middleware.NewAuthMiddleware(r.service.SecretKey(), r.service.CookieOptions(), r.service)).Post("/logout", r.Logout)

	return router
}

// Register creates a new user.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      RegisterIn  true  "Name and password"
// @Success      201   {object}  User
// @Failure      400   {object}  ValidationError
// @Failure      409   {object}  ConflictError
// @Failure      500
// @Router       /register [post]
func (r *Router) Register(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := hlog.FromRequest(req)

	var in RegisterIn
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		logger.Warn().Err(err).Msg("Failed to decode register body")
		metrics.AuthOperationsTotal.WithLabelValues("register", "invalid").Inc()
		writeJSON(w, req, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	user, err := r.service.Register(ctx, in)
	if err != nil {
		var (
			invalid  *ValidationError
			conflict *ConflictError
		)
		switch {
		case errors.As(err, &invalid):
			logger.Debug().Err(err).Str("name", in.Name).Msg("Register rejected")
			metrics.AuthOperationsTotal.WithLabelValues("register", "invalid").Inc()
			writeJSON(w, req, http.StatusBadRequest, invalid)
		case errors.As(err, &conflict):
			logger.Warn().Err(err).Str("name", in.Name).Msg("Register conflicted")
			metrics.AuthOperationsTotal.WithLabelValues("register", "conflict").Inc()
			writeJSON(w, req, http.StatusConflict, conflict)
		default:
			logger.Error().Err(err).Str("name", in.Name).Msg("Register failed")
			metrics.AuthOperationsTotal.WithLabelValues("register", "error").Inc()
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	logger.Debug().Str("user_id", user.ID.String()).Msg("User registered")
	metrics.AuthOperationsTotal.WithLabelValues("register", "success").Inc()
	writeJSON(w, req, http.StatusCreated, user)
}

// Login opens a session and sets the session cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      Credentials  true  "Name and password"
// @Success      200   {object}  User
// @Failure      401
// @Failure      500
// @Router       /login [post]
func (r *Router) Login(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := hlog.FromRequest(req)

	var creds Credentials
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
		logger.Warn().Err(err).Msg("Failed to decode login body")
		metrics.AuthOperationsTotal.WithLabelValues("login", "invalid").Inc()
		writeJSON(w, req, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	logger.Debug().Str("name", creds.Name).Msg("Login attempt")

	// a login always replaces the session the request came with
	r.dropSession(req)

	user, session, err := r.service.Login(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn().Str("name", creds.Name).Msg("Login failed: invalid credentials")
			metrics.AuthOperationsTotal.WithLabelValues("login", "unauthorized").Inc()
			cookie.ClearSession(w, r.service.CookieOptions())
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		logger.Error().Err(err).Str("name", creds.Name).Msg("Login failed")
		metrics.AuthOperationsTotal.WithLabelValues("login", "error").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := cookie.SetSession(w, session.ID, r.service.SecretKey(), r.service.CookieOptions()); err != nil {
		logger.Error().Err(err).Str("name", creds.Name).Msg("Login failed: could not set cookie")
		metrics.AuthOperationsTotal.WithLabelValues("login", "error").Inc()
		if err := r.service.Logout(ctx, session.ID); err != nil {
			logger.Error().Err(err).Msg("Failed to delete orphaned session")
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	logger.Debug().Str("user_id", user.ID.String()).Msg("Login successful")
	metrics.AuthOperationsTotal.WithLabelValues("login", "success").Inc()
	writeJSON(w, req, http.StatusOK, user)
}

// Logout ends the current session.
//
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Failure      401
// @Failure      500
// @Router       /logout [post]
func (r *Router) Logout(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := hlog.FromRequest(req)

	sessionID := middleware.GetSessionID(ctx)
	if err := r.service.Logout(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("Logout failed")
		metrics.AuthOperationsTotal.WithLabelValues("logout", "error").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	cookie.ClearSession(w, r.service.CookieOptions())

	logger.Debug().Str("user_id", middleware.GetUserID(ctx).String()).Msg("Logout successful")
	metrics.AuthOperationsTotal.WithLabelValues("logout", "success").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// dropSession deletes the session named by the request cookie, if any
func (r *Router) dropSession(req *http.Request) {
	sessionID, err := cookie.GetSession(req, r.service.SecretKey())
	if err != nil {
		return
	}

	if err := r.service.Logout(req.Context(), sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		hlog.FromRequest(req).Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to delete previous session")
	}
}

func notFound(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, req, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, req *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hlog.FromRequest(req).Error().Err(err).Msg("Failed to encode response")
	}
}
