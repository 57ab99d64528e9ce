package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "admin-token"
	TokenTTL   = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid admin token")

type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies admin tokens and moves them in and out of the
// admin cookie.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewTokens returns a signer for secret. secure marks the cookie Secure, which
// production deployments behind TLS want.
func NewTokens(secret string, secure bool) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: TokenTTL, secure: secure}
}

func (t *Tokens) Issue(username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		IsAdmin:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and that it grants admin.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || !claims.IsAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *Tokens) SetCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(t.ttl.Seconds()),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (t *Tokens) ClearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session returns the verified claims of the request's admin cookie.
func (t *Tokens) Session(c *gin.Context) (*Claims, bool) {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		return nil, false
	}
	claims, err := t.Verify(raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}
