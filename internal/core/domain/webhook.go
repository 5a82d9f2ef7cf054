package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookOutcome classifies how an inbound provider delivery was handled.
type WebhookOutcome string

const (
	WebhookProcessed        WebhookOutcome = "PROCESSED"
	WebhookDuplicate        WebhookOutcome = "DUPLICATE"
	WebhookInvalidSignature WebhookOutcome = "INVALID_SIGNATURE"
	WebhookUnmatched        WebhookOutcome = "UNMATCHED"
	WebhookError            WebhookOutcome = "ERROR"
)

// WebhookEvent records one inbound payment-provider delivery, successful or
// not, for replay and debugging. The provider delivers at-least-once and
// possibly out of order.
type WebhookEvent struct {
	ID            uuid.UUID      `json:"id"`
	ProviderTxRef string         `json:"provider_tx_ref,omitempty"`
	OrderRef      string         `json:"order_ref,omitempty"`
	Payload       string         `json:"payload"` // raw JSON body
	Outcome       WebhookOutcome `json:"outcome"`
	Error         *string        `json:"error,omitempty"`
	SourceIP      string         `json:"source_ip"`
	ReceivedAt    time.Time      `json:"received_at"`
}
