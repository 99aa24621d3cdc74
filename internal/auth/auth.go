// Package auth gates operator endpoints behind a shared API key.
package auth

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrKeyNotConfigured means the server has no API key, so every call is rejected
	ErrKeyNotConfigured = errors.New("API key authentication not configured")
	// ErrKeyMismatch means the presented key does not match
	ErrKeyMismatch = errors.New("invalid API key")
)

// APIKeyChecker validates presented keys against the configured key
type APIKeyChecker struct {
	key []byte
}

// NewAPIKeyChecker creates a checker; an empty key rejects every request
func NewAPIKeyChecker(key string) *APIKeyChecker {
	return &APIKeyChecker{key: []byte(key)}
}

// Check fails closed: it returns nil only when a key is configured and
// presented matches it
func (c *APIKeyChecker) Check(presented string) error {
	if len(c.key) == 0 {
		return ErrKeyNotConfigured
	}
	if subtle.ConstantTimeCompare(c.key, []byte(presented)) != 1 {
		return ErrKeyMismatch
	}
	return nil
}

// Configured reports whether a key is set
func (c *APIKeyChecker) Configured() bool {
	return len(c.key) > 0
}
