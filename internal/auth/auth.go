package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthRejected marks a missing or invalid identity token at admission.
// The connection is refused and never retried by the server.
var ErrAuthRejected = errors.New("auth rejected")

// TokenValidator resolves an identity token to a user id. Token issuance
// and the identity store behind it are external collaborators; the relay
// only consumes this seam.
type TokenValidator interface {
	// Validate returns the user id for a valid token, or an error wrapping
	// ErrAuthRejected.
	Validate(token string) (string, error)
}

// JWTValidator validates HMAC-signed JWTs and resolves the subject claim
// as the user id.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator creates a validator for tokens signed with the given
// HMAC secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

// Validate implements TokenValidator.
func (v *JWTValidator) Validate(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrAuthRejected)
	}
	return sub, nil
}

// InsecureValidator treats any non-empty token as the user id itself. Only
// for local development without an identity provider.
type InsecureValidator struct{}

// Validate implements TokenValidator.
func (InsecureValidator) Validate(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrAuthRejected)
	}
	return token, nil
}

// StaticValidator maps fixed tokens to user ids. Intended for tests and
// local development.
type StaticValidator map[string]string

// Validate implements TokenValidator.
func (v StaticValidator) Validate(token string) (string, error) {
	userID, ok := v[token]
	if !ok {
		return "", fmt.Errorf("%w: unknown token", ErrAuthRejected)
	}
	return userID, nil
}
