package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/infrastructure/auth"
)

// AuthHandler exchanges the operator API key for a short-lived JWT
type AuthHandler struct {
	BaseHandler
	verifier   *auth.APIKeyVerifier
	jwtService *auth.JWTService
	logger     *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(verifier *auth.APIKeyVerifier, jwtService *auth.JWTService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		verifier:   verifier,
		jwtService: jwtService,
		logger:     logger,
	}
}

// IssueToken godoc
// @Summary      Issue operator token
// @Description  Exchange the operator API key for a short-lived bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body TokenRequest true "Operator API key"
// @Success      200 {object} dto.Response{data=TokenResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.verifier.Verify(req.APIKey); err != nil {
		if errors.Is(err, auth.ErrAuthNotConfigured) {
			h.logger.Error("Token request rejected, no API key hash configured")
			h.InternalError(c, "Operator authentication is not configured")
			return
		}
		// The key never appears in logs, only the outcome.
		h.logger.Warn("Token request with invalid API key",
			zap.String("client_ip", c.ClientIP()))
		h.Unauthorized(c, "Invalid API key")
		return
	}

	token, err := h.jwtService.GenerateToken()
	if err != nil {
		h.logger.Error("Failed to sign operator token", zap.Error(err))
		h.InternalError(c, "Failed to issue token")
		return
	}

	h.Success(c, TokenResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   token.TokenType,
	})
}
