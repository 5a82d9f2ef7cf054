package handler

import (
	"io"

	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives payment provider callbacks. The endpoint always
// answers HTTP 200; application-level failure is reported in the body so the
// provider's retry schedule redelivers without a retry storm.
type WebhookHandler struct {
	processor ports.PaymentProcessor
	log       zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor ports.PaymentProcessor, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, log: log}
}

// HandlePaymentWebhook handles POST /api/v1/webhooks/payment.
// The raw body is passed through untouched; signature verification needs the
// exact bytes the provider signed.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.WebhookFail(c, apperror.Validation("cannot read request body"))
		return
	}

	if err := h.processor.HandleWebhook(c.Request.Context(), raw, c.ClientIP()); err != nil {
		response.WebhookFail(c, err)
		return
	}

	response.WebhookOK(c, "processed")
}
