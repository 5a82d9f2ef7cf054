package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PayoutHandler handles merchant-side payout endpoints.
type PayoutHandler struct {
	payoutSvc ports.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutSvc ports.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// Request handles POST /api/v1/payouts.
func (h *PayoutHandler) Request(c *gin.Context) {
	merchantID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PayoutRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	bankAccountID, err := uuid.Parse(req.BankAccountID)
	if err != nil {
		response.Error(c, apperror.Validation("bank_account_id must be a UUID"))
		return
	}

	payout, err := h.payoutSvc.RequestPayout(c.Request.Context(), ports.PayoutRequestInput{
		MerchantID:    merchantID,
		Amount:        req.Amount,
		BankAccountID: bankAccountID,
		Note:          req.Note,
		SourceIP:      c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToPayoutResponse(payout))
}

// Cancel handles POST /api/v1/payouts/:id/cancel.
func (h *PayoutHandler) Cancel(c *gin.Context) {
	merchantID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("payout id must be a UUID"))
		return
	}

	payout, err := h.payoutSvc.Cancel(c.Request.Context(), merchantID, payoutID, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPayoutResponse(payout))
}

// List handles GET /api/v1/payouts.
func (h *PayoutHandler) List(c *gin.Context) {
	merchantID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	payouts, err := h.payoutSvc.ListForMerchant(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPayoutListResponse(payouts))
}
