package dto

import (
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
)

// LoginRequest is the request body for merchant or admin login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
	Role   string `json:"role"`
}

// PayoutRequestBody is the request body for a merchant withdrawal request.
type PayoutRequestBody struct {
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	BankAccountID string  `json:"bank_account_id" binding:"required,uuid"`
	Note          *string `json:"note,omitempty" binding:"omitempty,max=500"`
}

// PayoutDecisionBody is the request body for admin approve/reject decisions.
type PayoutDecisionBody struct {
	Notes  string `json:"notes,omitempty" binding:"omitempty,max=500"`
	Reason string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// ConfirmTransferBody is the request body for confirming a dispatched
// bank transfer.
type ConfirmTransferBody struct {
	TransferRef string `json:"transfer_ref" binding:"required,max=100"`
	Notes       string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// PayoutResponse is the response body for payout requests.
type PayoutResponse struct {
	ID               string  `json:"id"`
	MerchantID       string  `json:"merchant_id"`
	BankAccountID    string  `json:"bank_account_id"`
	AmountRequested  int64   `json:"amount_requested"`
	AmountFees       int64   `json:"amount_fees"`
	AmountToTransfer int64   `json:"amount_to_transfer"`
	Status           string  `json:"status"`
	Note             *string `json:"note,omitempty"`
	AdminNotes       *string `json:"admin_notes,omitempty"`
	RejectionReason  *string `json:"rejection_reason,omitempty"`
	TransferRef      *string `json:"transfer_ref,omitempty"`
	RequestedAt      string  `json:"requested_at"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
	PaidAt           *string `json:"paid_at,omitempty"`
	RejectedAt       *string `json:"rejected_at,omitempty"`
	CancelledAt      *string `json:"cancelled_at,omitempty"`
}

// PayoutListResponse wraps a payout list.
type PayoutListResponse struct {
	Items []PayoutResponse `json:"items"`
	Total int              `json:"total"`
}

// HoldProjectionResponse projects the next hold release.
type HoldProjectionResponse struct {
	Amount     int64  `json:"amount"`
	ReleasesAt string `json:"releases_at"`
}

// WalletBalanceResponse is the merchant-facing wallet read model.
type WalletBalanceResponse struct {
	Currency             string                  `json:"currency"`
	BalanceTotal         int64                   `json:"balance_total"`
	BalanceAvailable     int64                   `json:"balance_available"`
	BalanceHold          int64                   `json:"balance_hold"`
	BalancePendingPayout int64                   `json:"balance_pending_payout"`
	TotalEarned          int64                   `json:"total_earned"`
	TotalWithdrawn       int64                   `json:"total_withdrawn"`
	LastPayoutAt         *string                 `json:"last_payout_at,omitempty"`
	NextRelease          *HoldProjectionResponse `json:"next_release,omitempty"`
}

// ReleaseHoldsResponse reports how many matured credits were released.
type ReleaseHoldsResponse struct {
	Released int `json:"released"`
}

// ToPayoutResponse maps a domain payout to its API representation.
func ToPayoutResponse(p *domain.PayoutRequest) PayoutResponse {
	return PayoutResponse{
		ID:               p.ID.String(),
		MerchantID:       p.MerchantID.String(),
		BankAccountID:    p.BankAccountID.String(),
		AmountRequested:  p.AmountRequested,
		AmountFees:       p.AmountFees,
		AmountToTransfer: p.AmountToTransfer,
		Status:           string(p.Status),
		Note:             p.Note,
		AdminNotes:       p.AdminNotes,
		RejectionReason:  p.RejectionReason,
		TransferRef:      p.TransferRef,
		RequestedAt:      p.RequestedAt.UTC().Format(time.RFC3339),
		ApprovedAt:       formatTimePtr(p.ApprovedAt),
		PaidAt:           formatTimePtr(p.PaidAt),
		RejectedAt:       formatTimePtr(p.RejectedAt),
		CancelledAt:      formatTimePtr(p.CancelledAt),
	}
}

// ToPayoutListResponse maps a payout slice.
func ToPayoutListResponse(payouts []domain.PayoutRequest) PayoutListResponse {
	items := make([]PayoutResponse, 0, len(payouts))
	for i := range payouts {
		items = append(items, ToPayoutResponse(&payouts[i]))
	}
	return PayoutListResponse{Items: items, Total: len(items)}
}

// ToWalletBalanceResponse maps the wallet read model.
func ToWalletBalanceResponse(view *ports.WalletView) WalletBalanceResponse {
	resp := WalletBalanceResponse{
		Currency:             view.Wallet.Currency,
		BalanceTotal:         view.Wallet.BalanceTotal,
		BalanceAvailable:     view.Wallet.BalanceAvailable,
		BalanceHold:          view.Wallet.BalanceHold,
		BalancePendingPayout: view.Wallet.BalancePendingPayout,
		TotalEarned:          view.Wallet.TotalEarned,
		TotalWithdrawn:       view.Wallet.TotalWithdrawn,
		LastPayoutAt:         formatTimePtr(view.Wallet.LastPayoutAt),
	}
	if view.NextRelease != nil {
		resp.NextRelease = &HoldProjectionResponse{
			Amount:     view.NextRelease.Amount,
			ReleasesAt: view.NextRelease.ReleasesAt.UTC().Format(time.RFC3339),
		}
	}
	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
