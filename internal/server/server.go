package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.uber.org/fx"

	"github.com/andrasnagy-data/authscreen/internal/shared/config"
	"github.com/andrasnagy-data/authscreen/internal/shared/metrics"
)

const requestTimeout = time.Minute

type (
	// Route mounts a handler under Pattern. Routes with a nil Handler are skipped.
	Route struct {
		Pattern string
		Handler http.Handler
	}

	// Server represents the HTTP server with all dependencies
	Server struct {
		server       *http.Server
		config       *config.Config
		logger       zerolog.Logger
		sentryWriter *sentryzerolog.Writer
	}

	params struct {
		fx.In

		Config        *config.Config
		Logger        zerolog.Logger
		Port          int                   `name:"port"`
		HealthHandler http.HandlerFunc      `name:"health"`
		SentryWriter  *sentryzerolog.Writer `optional:"true"`
		Routes        []Route               `group:"routes"`
	}
)

// Mount returns an fx constructor turning a router into a Route under pattern
func Mount(pattern string) func(chi.Router) Route {
	return func(router chi.Router) Route {
		return Route{Pattern: pattern, Handler: router}
	}
}

func NewServer(p params) *Server {
	r := chi.NewRouter()

	// Recovery middleware, must stay outermost
	r.Use(chimiddleware.Recoverer)

	if p.Config.IsEnvProd() {
		sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
		r.Use(sentryHandler.Handle)
	}

	// Middleware
	r.Use(hlog.NewHandler(p.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("url", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP request")
	}))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   p.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)
	r.Use(chimiddleware.Timeout(requestTimeout))

	// Routes
	r.Get("/health", p.HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	for _, route := range p.Routes {
		if route.Handler == nil {
			continue
		}
		p.Logger.Debug().Str("pattern", route.Pattern).Msg("Mounting route")
		r.Mount(route.Pattern, route.Handler)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", p.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		config:       p.Config,
		logger:       p.Logger,
		server:       server,
		sentryWriter: p.SentryWriter,
	}
}

// Register ties the server to the fx lifecycle
func Register(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.start,
		OnStop:  s.stop,
	})
}

// Handler exposes the root router
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// start starts the HTTP server
func (s *Server) start(_ context.Context) error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Str("environment", s.config.Environment).
		Bool("sentry_enabled", s.config.IsEnvProd()).
		Msg("Starting HTTP server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Server failed to start")
		}
	}()

	s.logger.Info().Msg("HTTP server started")
	return nil
}

// stop gracefully shuts down the HTTP server
func (s *Server) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.logger.Info().Msg("Shutting down HTTP server...")

	if s.config.IsEnvProd() {
		s.logger.Info().Msg("Flushing Sentry client and writer")
		if s.sentryWriter != nil {
			s.sentryWriter.Close()
		}
		sentry.Flush(2 * time.Second)
	}

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	s.logger.Info().Msg("HTTP server shutdown completed")
	return nil
}
