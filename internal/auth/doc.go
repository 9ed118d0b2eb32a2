// Package auth defines the token validation seam consumed during
// connection admission, plus a JWT-backed default implementation.
package auth
