package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TooShort  FieldError = "too_short"
	TooLong   FieldError = "too_long"
	Duplicate FieldError = "duplicate"
)

var (
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

type (
	// FieldError is the reason a register field was rejected
	FieldError string

	User struct {
		ID           uuid.UUID `json:"id"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"` // Never serialize password hash
	}

	// RegisterIn is the register request body. Lengths are counted in characters.
	RegisterIn struct {
		Name     string `json:"name" validate:"min=3,max=50"`
		Password string `json:"password" validate:"min=8"`
	}

	Credentials struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	InvalidField struct {
		Field string     `json:"field"`
		Error FieldError `json:"error"`
	}

	// ValidationError lists every rejected register field
	ValidationError struct {
		Fields []InvalidField `json:"errors"`
	}

	// ConflictError is a constraint violation raised by the database
	ConflictError struct {
		Violation string `json:"violation"`
	}

	Session struct {
		ID        uuid.UUID
		UserID    uuid.UUID
		ExpiresAt *time.Time
	}
)

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+string(f.Error))
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("database conflict: %s", e.Violation)
}
