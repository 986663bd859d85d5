package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie. The __Host- prefix pins it to the
// exact origin over HTTPS; plain-HTTP development uses the bare name.
const (
	CookieName         = "__Host-lifecover_session"
	InsecureCookieName = "lifecover_session"
)

const cookieIssuer = "lifecover-bfa"

// ErrInvalidCookie is returned for tampered, expired or malformed cookies.
var ErrInvalidCookie = errors.New("invalid session cookie")

// Cookies signs and reads the HS256 session cookie that carries the
// session ID.
type Cookies struct {
	secret []byte
	secure bool
}

// NewCookies creates a cookie codec. secure selects the __Host- name and the
// Secure attribute.
func NewCookies(secret string, secure bool) *Cookies {
	return &Cookies{secret: []byte(secret), secure: secure}
}

// Name returns the cookie name in use.
func (c *Cookies) Name() string {
	if c.secure {
		return CookieName
	}
	return InsecureCookieName
}

// Sign produces the cookie value for sessionID.
func (c *Cookies) Sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    cookieIssuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

// Parse validates value and returns the session ID it carries.
func (c *Cookies) Parse(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.ID == "" {
		return "", ErrInvalidCookie
	}
	return claims.ID, nil
}

// Read extracts the session ID from r's cookie.
func (c *Cookies) Read(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.Name())
	if err != nil {
		return "", ErrInvalidCookie
	}
	return c.Parse(ck.Value)
}

// Set issues the session cookie.
func (c *Cookies) Set(w http.ResponseWriter, sessionID string, expiresAt time.Time) error {
	value, err := c.Sign(sessionID, expiresAt)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(),
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
