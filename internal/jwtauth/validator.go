// Package jwtauth validates the HS256 bearer tokens carried by operator
// requests. Tokens are issued by the surrounding platform; this service only
// verifies them.
package jwtauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"refiler/pkg/platform/middleware/auth"
)

// Validator checks token signatures and standard claims against a shared
// signing key.
type Validator struct {
	signingKey []byte
	clock      func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock injects a clock for testability.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// New builds a validator around the shared signing key.
func New(signingKey string, opts ...Option) (*Validator, error) {
	if signingKey == "" {
		return nil, errors.New("jwt signing key is required")
	}
	v := &Validator{
		signingKey: []byte(signingKey),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type tokenClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies a bearer token, returning the caller
// identity on success. Expiry is always enforced.
func (v *Validator) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return v.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub claim")
	}
	return &auth.Claims{
		Subject:  claims.Subject,
		ClientID: claims.ClientID,
	}, nil
}
