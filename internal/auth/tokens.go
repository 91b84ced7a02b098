package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trckr/apiserver/internal/apperr"
)

const (
	// TokenTTL is the lifetime of a session token.
	TokenTTL    = 7 * 24 * time.Hour
	tokenIssuer = "trckr"
)

// Tokens signs and verifies stateless session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens constructs a Tokens signing with secret. An empty secret is
// accepted here and reported by Issue, so a misconfigured server can still
// answer health checks.
func NewTokens(secret string) *Tokens {
	return &Tokens{
		secret: []byte(strings.TrimSpace(secret)),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// TTL returns the token lifetime.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue returns a signed token for userID that expires after TTL.
func (t *Tokens) Issue(userID string) (string, error) {
	if len(t.secret) == 0 {
		return "", apperr.Configuration("Token generation failed", errors.New("JWT_SECRET is not configured"))
	}
	if strings.TrimSpace(userID) == "" {
		return "", apperr.Internal("Token generation failed", errors.New("empty subject"))
	}

	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", apperr.Crypto("Token generation failed", err)
	}
	return signed, nil
}

// Verify returns the user ID embedded in a valid, unexpired token. Every
// failure reports ok=false without saying why.
func (t *Tokens) Verify(tokenString string) (userID string, ok bool) {
	if len(t.secret) == 0 {
		return "", false
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", false
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return "", false
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", false
	}
	return subject, true
}
