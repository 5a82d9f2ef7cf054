package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles the admin payout review endpoints.
type AdminHandler struct {
	adminSvc ports.PayoutAdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc ports.PayoutAdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

// Approve handles POST /api/v1/admin/payouts/:id/approve.
func (h *AdminHandler) Approve(c *gin.Context) {
	decision, ok := h.bindDecision(c)
	if !ok {
		return
	}

	payout, err := h.adminSvc.Approve(c.Request.Context(), decision)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPayoutResponse(payout))
}

// Reject handles POST /api/v1/admin/payouts/:id/reject.
func (h *AdminHandler) Reject(c *gin.Context) {
	decision, ok := h.bindDecision(c)
	if !ok {
		return
	}

	payout, err := h.adminSvc.Reject(c.Request.Context(), decision)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPayoutResponse(payout))
}

// ConfirmTransfer handles POST /api/v1/admin/payouts/:id/confirm.
func (h *AdminHandler) ConfirmTransfer(c *gin.Context) {
	adminID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("payout id must be a UUID"))
		return
	}

	var req dto.ConfirmTransferBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payout, err := h.adminSvc.ConfirmTransfer(c.Request.Context(), ports.PayoutDecision{
		PayoutID: payoutID,
		AdminID:  adminID,
		Notes:    req.Notes,
		SourceIP: c.ClientIP(),
	}, req.TransferRef)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPayoutResponse(payout))
}

// List handles GET /api/v1/admin/payouts with an optional ?status= filter.
func (h *AdminHandler) List(c *gin.Context) {
	var status *domain.PayoutStatus
	if s := c.Query("status"); s != "" {
		ps := domain.PayoutStatus(s)
		switch ps {
		case domain.PayoutStatusPending, domain.PayoutStatusProcessing,
			domain.PayoutStatusPaid, domain.PayoutStatusRejected, domain.PayoutStatusCancelled:
			status = &ps
		default:
			response.Error(c, apperror.Validation("unknown payout status"))
			return
		}
	}

	payouts, err := h.adminSvc.List(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPayoutListResponse(payouts))
}

// bindDecision extracts the common approve/reject decision payload.
func (h *AdminHandler) bindDecision(c *gin.Context) (ports.PayoutDecision, bool) {
	adminID, ok := actorID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return ports.PayoutDecision{}, false
	}

	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("payout id must be a UUID"))
		return ports.PayoutDecision{}, false
	}

	var req dto.PayoutDecisionBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return ports.PayoutDecision{}, false
	}
	dto.SanitizeStruct(&req)

	return ports.PayoutDecision{
		PayoutID: payoutID,
		AdminID:  adminID,
		Notes:    req.Notes,
		Reason:   req.Reason,
		SourceIP: c.ClientIP(),
	}, true
}
