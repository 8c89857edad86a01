// Package api provides the HTTP handlers and routing for the sync engine:
// token issuance, the Delta Endpoint, the Stream Endpoint, and the example
// projects domain handler that exercises the Write Pipeline end to end.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"deltasync/apperror"
	"deltasync/security"
)

// AuthHandlers issues the bearer tokens the Identity Context later verifies.
// This is the supplemented token-issuance endpoint (spec.md is silent on how
// a token is minted); grounded on the teacher's POST /auth/token handler.
type AuthHandlers struct {
	JWT       *security.JWTService
	TokenTTL  time.Duration
}

// TokenRequest is the request payload for token issuance.
type TokenRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
}

// TokenResponse carries the signed bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IssueToken mints a token carrying tenant_id and user_id as claims, the way
// every downstream handler's Identity Context expects to find them.
//
// Endpoint: POST /api/auth/token
func (h *AuthHandlers) IssueToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequestf("invalid request")
	}
	if req.TenantID == "" {
		return apperror.BadRequestf("tenant_id is required")
	}
	if req.UserID == "" {
		return apperror.BadRequestf("user_id is required")
	}

	ttl := h.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	token, err := h.JWT.GenerateTokenWithClaims(req.UserID, ttl, map[string]interface{}{
		"tenant_id": req.TenantID,
	})
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}
