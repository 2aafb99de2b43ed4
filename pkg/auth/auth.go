// Package auth gates mutating queries behind a write authorizer.
//
// Read queries are always allowed; only CREATE statements pass through
// an Authorizer. The zero-configuration deployment uses AllowAll, while
// token mode compares a caller-supplied token against a stored bcrypt
// hash.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/runedb/runedb/pkg/config"
)

// ErrUnauthorized is returned when a write is attempted without a
// valid token.
var ErrUnauthorized = errors.New("auth: write not authorized")

// Authorizer decides whether a caller may mutate the graph.
type Authorizer interface {
	// AuthorizeWrite returns nil when the token grants write access,
	// ErrUnauthorized otherwise.
	AuthorizeWrite(token string) error
}

// AllowAll authorizes every write. Used when auth mode is "none".
type AllowAll struct{}

func (AllowAll) AuthorizeWrite(string) error { return nil }

// TokenAuthorizer authorizes writes whose token matches a bcrypt hash.
type TokenAuthorizer struct {
	hash []byte
}

// NewTokenAuthorizer builds an authorizer from a bcrypt hash produced
// by HashToken (or the bcrypt tooling of your choice).
func NewTokenAuthorizer(hash string) (*TokenAuthorizer, error) {
	// Reject malformed hashes up front rather than on first use.
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: invalid token hash: %w", err)
	}
	return &TokenAuthorizer{hash: []byte(hash)}, nil
}

func (a *TokenAuthorizer) AuthorizeWrite(token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// HashToken produces a bcrypt hash of token suitable for storing in
// configuration.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash token: %w", err)
	}
	return string(hash), nil
}

// FromConfig builds the Authorizer matching the configured auth mode.
func FromConfig(cfg config.AuthConfig) (Authorizer, error) {
	switch cfg.Mode {
	case config.AuthNone:
		return AllowAll{}, nil
	case config.AuthToken:
		return NewTokenAuthorizer(cfg.WriteToken)
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}
