package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OAuthSession is the state kept in the signed cookie between the start
// and callback legs of an authorization-code login.
type OAuthSession struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// NewOAuthSession signs the session as a short-lived HS256 JWT.
func NewOAuthSession(secret, provider, state, nonce string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	s := OAuthSession{
		Provider: provider,
		State:    state,
		Nonce:    nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, s).SignedString([]byte(secret))
}

// ParseOAuthSession verifies the cookie value and returns the session.
func ParseOAuthSession(secret, raw string) (*OAuthSession, error) {
	s := &OAuthSession{}
	_, err := jwt.ParseWithClaims(raw, s, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if s.State == "" || s.Nonce == "" {
		return nil, errors.New("incomplete oauth session")
	}
	return s, nil
}
