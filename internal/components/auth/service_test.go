package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/andrasnagy-data/authscreen/internal/shared/config"
	"github.com/andrasnagy-data/authscreen/internal/shared/cookie"
)

var testSecret = bytes.Repeat([]byte{0x2a}, 32)

// fakeRepo keeps users and sessions in memory
type fakeRepo struct {
	mu       sync.Mutex
	users    map[string]*User
	sessions map[uuid.UUID]*Session

	// createErr is returned by CreateUser when set
	createErr error
	lookupErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*User{}, sessions: map[uuid.UUID]*Session{}}
}

func (r *fakeRepo) CreateUser(_ context.Context, name, passwordHash string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.users[name]; ok {
		return nil, &ConflictError{Violation: "unique"}
	}
	user := &User{ID: uuid.New(), Name: name, PasswordHash: passwordHash}
	r.users[name] = user
	return user, nil
}

func (r *fakeRepo) GetUserByName(_ context.Context, name string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	user, ok := r.users[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (r *fakeRepo) CreateSession(_ context.Context, userID uuid.UUID, expiresAt *time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &Session{ID: uuid.New(), UserID: userID, ExpiresAt: expiresAt}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *fakeRepo) TouchSession(_ context.Context, id uuid.UUID, expiresAt *time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || (s.ExpiresAt != nil && !s.ExpiresAt.After(time.Now())) {
		return uuid.Nil, ErrSessionNotFound
	}
	s.ExpiresAt = expiresAt
	return s.UserID, nil
}

func (r *fakeRepo) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeRepo) DeleteExpiredSessions(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt != nil && !s.ExpiresAt.After(time.Now()) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func newTestService(repo repoer, ttl time.Duration) *service {
	return &service{
		repo:      repo,
		validate:  newValidator(),
		secretKey: testSecret,
		cookie:    cookie.Options{TTL: ttl},
		cost:      bcrypt.MinCost,
	}
}

func TestNewService_RejectsBadSecretKey(t *testing.T) {
	_, err := NewService(&config.Config{SecretKey: "not-hex"}, newFakeRepo())
	assert.ErrorIs(t, err, config.ErrInvalidSecretKey)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		in       RegisterIn
		expected []InvalidField
	}{
		{
			name:     "name too short",
			in:       RegisterIn{Name: "al", Password: "password1"},
			expected: []InvalidField{{Field: "name", Error: TooShort}},
		},
		{
			name:     "name too long",
			in:       RegisterIn{Name: strings.Repeat("a", 51), Password: "password1"},
			expected: []InvalidField{{Field: "name", Error: TooLong}},
		},
		{
			name:     "password too short",
			in:       RegisterIn{Name: "alice", Password: "pw1"},
			expected: []InvalidField{{Field: "password", Error: TooShort}},
		},
		{
			name: "both",
			in:   RegisterIn{Name: "", Password: ""},
			expected: []InvalidField{
				{Field: "name", Error: TooShort},
				{Field: "password", Error: TooShort},
			},
		},
		{
			name: "duplicate and short password",
			in:   RegisterIn{Name: "taken", Password: "short"},
			expected: []InvalidField{
				{Field: "name", Error: Duplicate},
				{Field: "password", Error: TooShort},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.users["taken"] = &User{ID: uuid.New(), Name: "taken"}
			svc := newTestService(repo, 0)

			_, err := svc.Register(context.Background(), tt.in)

			var invalid *ValidationError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.expected, invalid.Fields)
		})
	}
}

func TestRegister_CountsCharacters(t *testing.T) {
	svc := newTestService(newFakeRepo(), 0)

	// three characters, six bytes
	_, err := svc.Register(context.Background(), RegisterIn{Name: "äöü", Password: "password1"})
	assert.NoError(t, err)
}

func TestRegister_StoresHash(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)

	user, err := svc.Register(context.Background(), RegisterIn{Name: "alice", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
	assert.NotEqual(t, uuid.Nil, user.ID)

	stored := repo.users["alice"]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password1")))
}

func TestRegister_PropagatesConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = &ConflictError{Violation: "unique"}
	svc := newTestService(repo, 0)

	_, err := svc.Register(context.Background(), RegisterIn{Name: "alice", Password: "password1"})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "unique", conflict.Violation)
}

func TestRegister_LookupFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.lookupErr = errors.New("connection reset")
	svc := newTestService(repo, 0)

	_, err := svc.Register(context.Background(), RegisterIn{Name: "alice", Password: "password1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	_, err := svc.Register(context.Background(), RegisterIn{Name: "alice", Password: "password1"})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		user, session, err := svc.Login(context.Background(), Credentials{Name: "alice", Password: "password1"})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Name)
		assert.Equal(t, user.ID, session.UserID)
		assert.Nil(t, session.ExpiresAt, "browser session without server side expiry")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), Credentials{Name: "alice", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), Credentials{Name: "bob", Password: "password1"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogin_SessionExpiry(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 2*time.Hour)
	_, err := svc.Register(context.Background(), RegisterIn{Name: "alice", Password: "password1"})
	require.NoError(t, err)

	_, session, err := svc.Login(context.Background(), Credentials{Name: "alice", Password: "password1"})
	require.NoError(t, err)
	require.NotNil(t, session.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *session.ExpiresAt, time.Minute)
}

func TestTouchAndLogout(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, time.Hour)
	user, err := svc.Register(context.Background(), RegisterIn{Name: "alice", Password: "password1"})
	require.NoError(t, err)
	_, session, err := svc.Login(context.Background(), Credentials{Name: "alice", Password: "password1"})
	require.NoError(t, err)

	userID, err := svc.Touch(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	require.NoError(t, svc.Logout(context.Background(), session.ID))
	_, err = svc.Touch(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepExpired(t *testing.T) {
	repo := newFakeRepo()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	repo.sessions[uuid.New()] = &Session{ExpiresAt: &past}
	repo.sessions[uuid.New()] = &Session{ExpiresAt: &future}
	repo.sessions[uuid.New()] = &Session{}
	svc := newTestService(repo, 0)

	n, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 2, repo.sessionCount())
}
