package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusPaid       PayoutStatus = "PAID"
	PayoutStatusRejected   PayoutStatus = "REJECTED"
	PayoutStatusCancelled  PayoutStatus = "CANCELLED"
)

// PayoutRequest is a merchant's withdrawal request. Created by the merchant
// in PENDING; mutated only by the admin approval service, or by the merchant
// cancelling while still PENDING. PAID, REJECTED and CANCELLED are terminal.
type PayoutRequest struct {
	ID               uuid.UUID    `json:"id"`
	MerchantID       uuid.UUID    `json:"merchant_id"`
	BankAccountID    uuid.UUID    `json:"bank_account_id"`
	AmountRequested  int64        `json:"amount_requested"`
	AmountFees       int64        `json:"amount_fees"`
	AmountToTransfer int64        `json:"amount_to_transfer"` // amount_requested - amount_fees
	Status           PayoutStatus `json:"status"`
	Note             *string      `json:"note,omitempty"` // merchant-supplied
	AdminNotes       *string      `json:"admin_notes,omitempty"`
	RejectionReason  *string      `json:"rejection_reason,omitempty"`
	ReviewedBy       *uuid.UUID   `json:"reviewed_by,omitempty"`
	TransferRef      *string      `json:"transfer_ref,omitempty"` // bank-transfer provider reference
	RequestedAt      time.Time    `json:"requested_at"`
	ApprovedAt       *time.Time   `json:"approved_at,omitempty"`
	PaidAt           *time.Time   `json:"paid_at,omitempty"`
	RejectedAt       *time.Time   `json:"rejected_at,omitempty"`
	CancelledAt      *time.Time   `json:"cancelled_at,omitempty"`
}

// IsTerminal reports whether the payout reached a final state.
func (p *PayoutRequest) IsTerminal() bool {
	return p.Status == PayoutStatusPaid ||
		p.Status == PayoutStatusRejected ||
		p.Status == PayoutStatusCancelled
}
