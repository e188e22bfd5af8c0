package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const Name string = "session"

var ErrInvalidValue = errors.New("invalid cookie value")

// Options controls the attributes of the session cookie
type Options struct {
	// Secure restricts the cookie to https. Cross-site credentialed requests
	// additionally need SameSite=None, which browsers only accept on secure cookies.
	Secure bool
	// TTL is the cookie lifetime, zero means the cookie ends with the browser session
	TTL time.Duration
}

// encrypt seals "{cookie name}:{session id}" with AES-GCM. The cookie name is part of the
// authenticated plaintext so a value cannot be replayed under another cookie name.
func encrypt(sessionID uuid.UUID, secret []byte, cookieName string) (string, error) {
	aesGCM, err := newGCM(secret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// ':' cannot appear in a cookie name, so it is a safe separator
	plaintext := fmt.Sprintf("%s:%s", cookieName, sessionID.String())

	// output layout is {nonce}{ciphertext}
	sealed := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// decrypt opens a value produced by encrypt and checks it was issued for expectedCookieName
func decrypt(value string, secret []byte, expectedCookieName string) (uuid.UUID, error) {
	raw, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return uuid.Nil, ErrInvalidValue
	}

	aesGCM, err := newGCM(secret)
	if err != nil {
		return uuid.Nil, err
	}

	nonceSize := aesGCM.NonceSize()
	if len(raw) < nonceSize {
		return uuid.Nil, ErrInvalidValue
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return uuid.Nil, ErrInvalidValue
	}

	actualName, sessionID, ok := strings.Cut(string(plaintext), ":")
	if !ok || actualName != expectedCookieName {
		return uuid.Nil, ErrInvalidValue
	}

	id, err := uuid.Parse(sessionID)
	if err != nil {
		return uuid.Nil, ErrInvalidValue
	}
	return id, nil
}

func newGCM(secret []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// GetSession returns the session ID carried by the request's session cookie
func GetSession(r *http.Request, secret []byte) (uuid.UUID, error) {
	c, err := r.Cookie(Name)
	if err != nil {
		return uuid.Nil, err
	}
	return decrypt(c.Value, secret, Name)
}

// SetSession writes an encrypted session cookie for sessionID
func SetSession(w http.ResponseWriter, sessionID uuid.UUID, secret []byte, opts Options) error {
	value, err := encrypt(sessionID, secret, Name)
	if err != nil {
		return err
	}

	c := baseCookie(opts)
	c.Value = value
	if opts.TTL > 0 {
		c.MaxAge = int(opts.TTL.Seconds())
	}
	http.SetCookie(w, c)
	return nil
}

// ClearSession expires the session cookie on the client
func ClearSession(w http.ResponseWriter, opts Options) {
	c := baseCookie(opts)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func baseCookie(opts Options) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if opts.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     Name,
		HttpOnly: true,
		Path:     "/",
		Secure:   opts.Secure,
		SameSite: sameSite,
	}
}
