package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrInvalidSecretKey = errors.New("SECRET_KEY must be a hex encoded 16, 24 or 32 byte key")

// Config holds configuration shared by the API server, the screen shell and authctl
type Config struct {
	Version     string `env:"VERSION" envDefault:"0.1.0"`
	Port        int    `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	SentryDSN   string `env:"SENTRY_DSN"`

	// API server
	DatabaseURL    string   `env:"DATABASE_URL"`
	SecretKey      string   `env:"SECRET_KEY"`
	SessionExpiry  int      `env:"SESSION_EXPIRY" envDefault:"0"` // hours of inactivity, 0 = browser session
	CookieSecure   bool     `env:"COOKIE_SECURE" envDefault:"false"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:4200,capacitor://localhost,http://localhost"`
	AssetsDir      string   `env:"ASSETS_DIR" envDefault:"dist/browser"`

	// Screen shell and authctl
	ShellPort      int           `env:"SHELL_PORT" envDefault:"4200"`
	APIURL         string        `env:"API_URL" envDefault:"http://localhost:8080/api"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"`
}

// NewConfig loads an optional .env file and parses the environment into a Config
func NewConfig() (*Config, error) {
	// .env is optional, the process environment wins
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsEnvProd() bool {
	if c.Environment == "prod" && c.SentryDSN != "" {
		return true
	}
	return false
}

// SecretKeyBytes decodes SECRET_KEY into an AES key
func (c *Config) SecretKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, ErrInvalidSecretKey
	}
}

// SessionTTL returns the inactivity window of a session, zero when sessions end with the browser
func (c *Config) SessionTTL() time.Duration {
	if c.SessionExpiry <= 0 {
		return 0
	}
	return time.Duration(c.SessionExpiry) * time.Hour
}
