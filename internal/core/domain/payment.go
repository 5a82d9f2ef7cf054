package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of one attempted charge.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// Payment represents one attempted charge for one order. It is created
// PENDING when a checkout session is opened and moves exactly once to a
// terminal outcome. ProviderRef is the external transaction id, unique once
// set; together with the COMPLETED status check it guards against double
// crediting under webhook redelivery.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	OrderID        uuid.UUID     `json:"order_id"`
	OrderRef       string        `json:"order_ref"` // provider-side order identifier
	MerchantID     uuid.UUID     `json:"merchant_id"`
	AmountTotal    int64         `json:"amount_total"`
	PlatformFee    int64         `json:"platform_fee"`
	MerchantAmount int64         `json:"merchant_amount"`
	Currency       string        `json:"currency"`
	ProviderRef    *string       `json:"provider_ref,omitempty"`
	Status         PaymentStatus `json:"status"`
	Metadata       *string       `json:"metadata,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsTerminal reports whether the payment reached a final outcome.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}

// CanTransitionTo enforces the payment state machine:
// PENDING -> {PROCESSING, COMPLETED, FAILED}; PROCESSING -> {COMPLETED, FAILED}.
func (p *Payment) CanTransitionTo(target PaymentStatus) bool {
	switch p.Status {
	case PaymentStatusPending:
		return target == PaymentStatusProcessing ||
			target == PaymentStatusCompleted ||
			target == PaymentStatusFailed
	case PaymentStatusProcessing:
		return target == PaymentStatusCompleted || target == PaymentStatusFailed
	default:
		return false
	}
}
