package auth

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/andrasnagy-data/authscreen/internal/shared/config"
	"github.com/andrasnagy-data/authscreen/internal/shared/cookie"
)

type (
	servicer interface {
		Register(ctx context.Context, in RegisterIn) (*User, error)
		Login(ctx context.Context, creds Credentials) (*User, *Session, error)
		Logout(ctx context.Context, sessionID uuid.UUID) error
		Touch(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
		SweepExpired(ctx context.Context) (int64, error)
		SecretKey() []byte
		CookieOptions() cookie.Options
	}

	service struct {
		repo      repoer
		validate  *validator.Validate
		secretKey []byte
		cookie    cookie.Options
		cost      int
	}
)

func NewService(cfg *config.Config, repo repoer) (servicer, error) {
	key, err := cfg.SecretKeyBytes()
	if err != nil {
		return nil, err
	}

	return &service{
		repo:      repo,
		validate:  newValidator(),
		secretKey: key,
		cookie:    cookie.Options{Secure: cfg.CookieSecure, TTL: cfg.SessionTTL()},
		cost:      bcrypt.DefaultCost,
	}, nil
}

// newValidator reports fields under their json names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// Register validates the new user, then stores it with a bcrypt hash of its password.
// The name is only checked for duplicates once its length is valid.
func (s *service) Register(ctx context.Context, in RegisterIn) (*User, error) {
	byField, err := s.invalidFields(in)
	if err != nil {
		return nil, err
	}

	if _, ok := byField["name"]; !ok {
		_, err := s.repo.GetUserByName(ctx, in.Name)
		switch {
		case err == nil:
			byField["name"] = Duplicate
		case !errors.Is(err, ErrUserNotFound):
			return nil, fmt.Errorf("looking up user: %w", err)
		}
	}

	if len(byField) > 0 {
		invalid := make([]InvalidField, 0, len(byField))
		for _, field := range []string{"name", "password"} {
			if reason, ok := byField[field]; ok {
				invalid = append(invalid, InvalidField{Field: field, Error: reason})
			}
		}
		return nil, &ValidationError{Fields: invalid}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	return s.repo.CreateUser(ctx, in.Name, string(hash))
}

func (s *service) invalidFields(in RegisterIn) (map[string]FieldError, error) {
	byField := make(map[string]FieldError)

	err := s.validate.Struct(in)
	if err == nil {
		return byField, nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, err
	}

	for _, fe := range ve {
		reason := TooShort
		if fe.Tag() == "max" {
			reason = TooLong
		}
		byField[fe.Field()] = reason
	}
	return byField, nil
}

// Login checks the credentials and opens a new session for the user
func (s *service) Login(ctx context.Context, creds Credentials) (*User, *Session, error) {
	user, err := s.repo.GetUserByName(ctx, creds.Name)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.repo.CreateSession(ctx, user.ID, s.expiresAt())
	if err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}
	return user, session, nil
}

func (s *service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

// Touch resolves a live session to its user and extends it by the inactivity window
func (s *service) Touch(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	return s.repo.TouchSession(ctx, sessionID, s.expiresAt())
}

func (s *service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx)
}

// SecretKey returns the key used to encrypt session cookies
func (s *service) SecretKey() []byte {
	return s.secretKey
}

func (s *service) CookieOptions() cookie.Options {
	return s.cookie
}

// expiresAt is nil for sessions that end with the browser
func (s *service) expiresAt() *time.Time {
	if s.cookie.TTL <= 0 {
		return nil
	}
	t := time.Now().Add(s.cookie.TTL)
	return &t
}
