package auth

import (
	"errors"

	"github.com/oms/backend/internal/infrastructure/config"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidAPIKey is returned when the presented key does not match
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrAuthNotConfigured is returned when no API key hash is configured
	ErrAuthNotConfigured = errors.New("operator authentication is not configured")
)

// APIKeyVerifier checks a presented operator API key against the bcrypt
// hash from configuration. Only the hash is ever stored or logged.
type APIKeyVerifier struct {
	hash []byte
}

// NewAPIKeyVerifier creates a new APIKeyVerifier
func NewAPIKeyVerifier(cfg config.AuthConfig) *APIKeyVerifier {
	return &APIKeyVerifier{hash: []byte(cfg.APIKeyHash)}
}

// Verify compares the presented key against the configured hash
func (v *APIKeyVerifier) Verify(apiKey string) error {
	if len(v.hash) == 0 {
		return ErrAuthNotConfigured
	}
	if apiKey == "" {
		return ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(apiKey)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey produces the bcrypt hash an operator places in configuration
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", errors.New("API key is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
