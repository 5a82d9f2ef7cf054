package domain

import (
	"time"

	"github.com/google/uuid"
)

// BankAccountStatus is the verification state of a payout destination.
type BankAccountStatus string

const (
	BankAccountPending  BankAccountStatus = "PENDING"
	BankAccountVerified BankAccountStatus = "VERIFIED"
	BankAccountRejected BankAccountStatus = "REJECTED"
)

// BankAccount is a merchant-owned payout destination. Only VERIFIED accounts
// may receive a payout. The account number is stored masked; this core never
// needs the full number.
type BankAccount struct {
	ID            uuid.UUID         `json:"id"`
	MerchantID    uuid.UUID         `json:"merchant_id"`
	BankName      string            `json:"bank_name"`
	AccountHolder string            `json:"account_holder"`
	AccountMasked string            `json:"account_masked"`
	Status        BankAccountStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsVerified reports whether the account may receive payouts.
func (b *BankAccount) IsVerified() bool {
	return b.Status == BankAccountVerified
}
