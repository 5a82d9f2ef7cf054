package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes merchant self-service from admin operations.
type Role string

const (
	RoleMerchant Role = "MERCHANT"
	RoleAdmin    Role = "ADMIN"
)

// KYCStatus is the merchant's know-your-customer verification state.
type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCVerified KYCStatus = "VERIFIED"
	KYCRejected KYCStatus = "REJECTED"
)

// Merchant is the financial identity owning a wallet. KYC status,
// withdrawal flags and bank accounts are read-only inputs to payout
// validation; this core never mutates them.
type Merchant struct {
	ID                     uuid.UUID  `json:"id"`
	Username               string     `json:"username"`
	PasswordHash           string     `json:"-"` // Never expose
	Role                   Role       `json:"role"`
	KYCStatus              KYCStatus  `json:"kyc_status"`
	CanWithdraw            bool       `json:"can_withdraw"`
	WithdrawalBlockedUntil *time.Time `json:"withdrawal_blocked_until,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// WithdrawalsBlocked reports whether the merchant may request payouts at
// the given instant, returning the unblock time when one is set.
func (m *Merchant) WithdrawalsBlocked(now time.Time) (bool, *time.Time) {
	if !m.CanWithdraw {
		return true, nil
	}
	if m.WithdrawalBlockedUntil != nil && m.WithdrawalBlockedUntil.After(now) {
		return true, m.WithdrawalBlockedUntil
	}
	return false, nil
}
