package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/hlog"
)

type (
	pinger interface {
		Ping(ctx context.Context) error
	}

	// HealthSrvc checks the database behind the API
	HealthSrvc struct {
		db pinger
	}

	// HealthResponse represents the response structure for health check endpoint
	HealthResponse struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Database  bool      `json:"database"`
	}
)

func NewHealthHandler(srvc *HealthSrvc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := hlog.FromRequest(r)

		response := srvc.check(ctx)

		w.Header().Set("Content-Type", "application/json")

		if response.Database {
			logger.Debug().Msg("Database healthcheck ok")
			w.WriteHeader(http.StatusOK)
		} else {
			logger.Error().Msg("Database healthcheck failed")
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error().Err(err).Msg("Failed to encode health check response")
		}
	}
}

func NewHealthSrvc(pool *pgxpool.Pool) *HealthSrvc {
	return &HealthSrvc{db: pool}
}

func (s *HealthSrvc) check(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "serving",
		Timestamp: time.Now().UTC(),
		Database:  s.db.Ping(ctx) == nil,
	}
	if !response.Database {
		response.Status = "not serving"
	}
	return response
}
