// Package auth guards the override-mutating routes with a shared admin token
// checked against a bcrypt hash.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken = errors.New("missing admin token")
	ErrInvalidToken = errors.New("invalid admin token")
	ErrWeakToken    = errors.New("admin token must be 8-72 bytes")
)

// AdminGuard checks bearer tokens. A guard built from an empty hash is open:
// every request passes.
type AdminGuard struct {
	hash []byte
}

// NewAdminGuard validates hash as a bcrypt hash.
func NewAdminGuard(hash string) (*AdminGuard, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &AdminGuard{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &AdminGuard{hash: []byte(hash)}, nil
}

// Open reports whether the guard lets everything through.
func (g *AdminGuard) Open() bool { return g == nil || len(g.hash) == 0 }

// Check validates the request's Authorization header.
func (g *AdminGuard) Check(r *http.Request) error {
	if g.Open() {
		return nil
	}
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return ErrMissingToken
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// Require wraps next so it only runs for authorised requests. deny writes
// the rejection.
func (g *AdminGuard) Require(next http.HandlerFunc, deny func(http.ResponseWriter, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.Check(r); err != nil {
			deny(w, err)
			return
		}
		next(w, r)
	}
}

// HashToken produces the bcrypt hash to configure as ADMIN_PASSWORD_HASH.
func HashToken(token string) (string, error) {
	if len(token) < 8 || len(token) > 72 {
		return "", ErrWeakToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func bearerToken(raw string) string {
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
}
