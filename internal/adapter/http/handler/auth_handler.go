package handler

import (
	"fmt"
	"net/http"
	"time"

	"wallet-ledger-service/internal/adapter/http/dto"
	"wallet-ledger-service/internal/adapter/http/middleware"
	redisStore "wallet-ledger-service/internal/adapter/storage/redis"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"
	"wallet-ledger-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authSvc  ports.AuthService
	denylist *redisStore.TokenDenylist
}

// NewAuthHandler creates a new AuthHandler. A nil denylist makes Logout a
// no-op beyond the token check the route's middleware already performed.
func NewAuthHandler(authSvc ports.AuthService, denylist *redisStore.TokenDenylist) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, denylist: denylist}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToAuthResponse(result))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToAuthResponse(result))
}

// Logout handles POST /api/v1/auth/logout. The presented token goes on the
// denylist until it would have expired anyway.
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.denylist != nil {
		token := c.GetString(middleware.CtxToken)
		expiry, _ := c.Get(middleware.CtxTokenExpiry)
		expiresAt, ok := expiry.(time.Time)
		if token == "" || !ok {
			response.Error(c, apperror.ErrInvalidToken())
			return
		}

		if err := h.denylist.Revoke(c.Request.Context(), token, time.Until(expiresAt)); err != nil {
			response.Error(c, apperror.InternalError(fmt.Errorf("revoke token: %w", err)))
			return
		}
	}

	response.OK(c, gin.H{"message": "Logged out"})
}

// HealthCheck handles GET /health, verifying all external dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
