package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/andrasnagy-data/authscreen/internal/shared/metrics"
)

const sweepInterval = time.Hour

type (
	// Sweeper deletes expired sessions in the background
	Sweeper struct {
		service  servicer
		interval time.Duration
		logger   zerolog.Logger

		cancel context.CancelFunc
		group  *errgroup.Group
	}
)

func NewSweeper(lc fx.Lifecycle, service servicer, logger zerolog.Logger) *Sweeper {
	s := &Sweeper{
		service:  service,
		interval: sweepInterval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			return s.Stop()
		},
	})
	return s
}

func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	s.cancel = cancel
	s.group = g

	g.Go(func() error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	})
	s.logger.Debug().Dur("interval", s.interval).Msg("Session sweeper started")
}

func (s *Sweeper) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := s.group.Wait()
	s.logger.Debug().Msg("Session sweeper stopped")
	return err
}

// Sweep deletes every expired session once
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.service.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Failed to delete expired sessions")
		}
		return
	}

	metrics.SessionsSweptTotal.Add(float64(n))
	if n > 0 {
		s.logger.Info().Int64("sessions", n).Msg("Expired sessions deleted")
	}
}
