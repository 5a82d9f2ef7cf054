package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles merchant wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /api/v1/wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	merchantID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	view, err := h.walletSvc.GetBalance(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToWalletBalanceResponse(view))
}

// ReleaseHolds handles POST /api/v1/wallet/release-holds. In production the
// scheduler drives this; the endpoint lets a merchant trigger an early sweep
// of matured credits.
func (h *WalletHandler) ReleaseHolds(c *gin.Context) {
	merchantID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	released, err := h.walletSvc.ReleaseDueHolds(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ReleaseHoldsResponse{Released: released})
}

// actorID extracts the authenticated actor's UUID from the request context.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middleware.CtxActorID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
