package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/andrasnagy-data/authscreen/internal/shared/config"
)

// NewPgxPool creates a PostgreSQL connection pool: max 10 connections, min 2, 1-hour max lifetime,
// 30-min idle timeout. The schema is migrated on start and the pool is closed on stop.
func NewPgxPool(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	logger = logger.With().Str("component", "database").Logger()
	logger.Debug().Msg("Initializing database connection pool")

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse database URL")
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = time.Minute * 30

	logger.Debug().
		Int32("max_conns", poolCfg.MaxConns).
		Int32("min_conns", poolCfg.MinConns).
		Dur("max_conns_lifetime", poolCfg.MaxConnLifetime).
		Dur("max_conns_idletime", poolCfg.MaxConnIdleTime).
		Msg("Database connection pool configuration")

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create database connection pool")
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := Migrate(ctx, pool); err != nil {
				logger.Error().Err(err).Msg("Failed to migrate database schema")
				return err
			}
			logger.Info().Msg("Database schema up to date")
			return nil
		},
		OnStop: func(context.Context) error {
			pool.Close()
			logger.Debug().Msg("Database connection pool closed")
			return nil
		},
	})

	logger.Debug().Msg("Database connection pool created successfully")
	return pool, nil
}
