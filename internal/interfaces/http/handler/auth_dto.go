package handler

import "time"

// TokenRequest represents the request body for the operator token exchange
type TokenRequest struct {
	APIKey string `json:"api_key" binding:"required,min=16,max=128"`
}

// TokenResponse represents an issued operator token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}
