package logging

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/rs/zerolog"

	"github.com/andrasnagy-data/authscreen/internal/shared/config"
)

// NewLogger creates a zerolog logger with pretty console output outside prod, or JSON output
// mirrored to Sentry in prod. The Sentry writer is nil when not in prod.
func NewLogger(cfg *config.Config) (zerolog.Logger, *sentryzerolog.Writer) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.IsEnvProd() {
		return consoleLogger(), nil
	}

	if err := initSentry(cfg); err != nil {
		logger := consoleLogger()
		logger.Error().Err(err).Msg("Failed to initialize Sentry, using console only")
		return logger, nil
	}

	sentryWriter, err := sentryzerolog.New(sentryzerolog.Config{
		Options: sentryzerolog.Options{
			Levels:          []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
			WithBreadcrumbs: true,
			FlushTimeout:    3 * time.Second,
		},
	})
	if err != nil {
		logger := consoleLogger()
		logger.Error().Err(err).Msg("Failed to initialize Sentry writer, using console only")
		return logger, nil
	}

	return zerolog.New(zerolog.MultiLevelWriter(os.Stderr, sentryWriter)).
		With().
		Timestamp().
		Caller().
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Logger(), sentryWriter
}

func consoleLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).
		With().
		Timestamp().
		Caller().
		Logger()
}

func initSentry(cfg *config.Config) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cfg.Version,
		AttachStacktrace: true,
		SendDefaultPII:   false,
		EnableTracing:    true,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if ctx.Parent != nil && ctx.Parent.Sampled != sentry.SampledUndefined {
				if ctx.Parent.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}

			switch ctx.Span.Name {
			case "GET /health", "GET /metrics", "GET /notifications":
				return 0.0
			}
			return 1.0
		}),
	})
}
