package cookie

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = bytes.Repeat([]byte{0x42}, 32)

func TestEncryptDecrypt(t *testing.T) {
	id := uuid.New()

	value, err := encrypt(id, testSecret, Name)
	require.NoError(t, err)

	got, err := decrypt(value, testSecret, Name)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestDecrypt_Rejects(t *testing.T) {
	id := uuid.New()
	value, err := encrypt(id, testSecret, Name)
	require.NoError(t, err)

	tests := []struct {
		name   string
		value  string
		secret []byte
		cookie string
	}{
		{"not base64", "%%%", testSecret, Name},
		{"too short", "YWJj", testSecret, Name},
		{"wrong secret", value, bytes.Repeat([]byte{0x01}, 32), Name},
		{"wrong cookie name", value, testSecret, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decrypt(tt.value, tt.secret, tt.cookie)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestSetAndGetSession(t *testing.T) {
	id := uuid.New()
	rec := httptest.NewRecorder()

	require.NoError(t, SetSession(rec, id, testSecret, Options{Secure: true, TTL: time.Hour}))

	res := rec.Result()
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, Name, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(c)
	got, err := GetSession(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSetSession_BrowserSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, SetSession(rec, uuid.New(), testSecret, Options{}))

	c := rec.Result().Cookies()[0]
	assert.Equal(t, 0, c.MaxAge)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestGetSession_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	_, err := GetSession(req, testSecret)
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestClearSession(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSession(rec, Options{})

	c := rec.Result().Cookies()[0]
	assert.Equal(t, Name, c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
}
