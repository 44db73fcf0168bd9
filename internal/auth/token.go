package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spendwise/spendwise/internal/utils"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenValidator issues and verifies HS256 bearer tokens whose subject is a user uid.
type TokenValidator struct {
	secret []byte
	clock  utils.Clock
}

func NewTokenValidator(secret string, clock utils.Clock) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), clock: clock}
}

// Enabled reports whether a secret is configured.
func (v *TokenValidator) Enabled() bool {
	return len(v.secret) > 0
}

func (v *TokenValidator) Issue(uid string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", errors.New("token secret is not configured")
	}
	now := v.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate returns the user uid carried by a valid, unexpired token.
func (v *TokenValidator) Validate(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
