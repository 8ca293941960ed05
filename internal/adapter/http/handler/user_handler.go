package handler

import (
	"time"

	"wallet-ledger-service/internal/adapter/http/dto"
	"wallet-ledger-service/internal/adapter/http/middleware"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"
	"wallet-ledger-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler handles user profile endpoints.
type UserHandler struct {
	userRepo ports.UserRepository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userRepo ports.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// GetProfile handles GET /api/v1/users/me.
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, walletID, ok := authIDs(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if user == nil {
		response.Error(c, apperror.ErrNotFound("user"))
		return
	}

	response.OK(c, dto.UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		WalletID:  walletID.String(),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// authIDs pulls the authenticated user and wallet IDs set by JWTAuth.
func authIDs(c *gin.Context) (userID, walletID uuid.UUID, ok bool) {
	u, exists := c.Get(middleware.CtxUserID)
	if !exists {
		return uuid.Nil, uuid.Nil, false
	}
	w, exists := c.Get(middleware.CtxWalletID)
	if !exists {
		return uuid.Nil, uuid.Nil, false
	}
	userID, uok := u.(uuid.UUID)
	walletID, wok := w.(uuid.UUID)
	return userID, walletID, uok && wok
}
