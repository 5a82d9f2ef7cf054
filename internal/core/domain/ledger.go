package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LedgerEntryType identifies the bucket movement an entry records.
type LedgerEntryType string

const (
	// LedgerSaleCredit credits a settled sale into the hold bucket.
	LedgerSaleCredit LedgerEntryType = "SALE_CREDIT"
	// LedgerHoldRelease moves a matured credit from hold to available.
	LedgerHoldRelease LedgerEntryType = "HOLD_RELEASE"
	// LedgerPayoutReserve moves a requested payout from available to pending payout.
	LedgerPayoutReserve LedgerEntryType = "PAYOUT_RESERVE"
	// LedgerPayoutPaid removes a completed payout from the wallet.
	LedgerPayoutPaid LedgerEntryType = "PAYOUT_PAID"
	// LedgerPayoutRejectedRefund returns a rejected or cancelled payout
	// reservation to the available bucket.
	LedgerPayoutRejectedRefund LedgerEntryType = "PAYOUT_REJECTED_REFUND"
)

// LedgerEntry is one immutable row of a wallet's append-only transaction log.
// Amount is signed from the perspective of balance_total: SALE_CREDIT is
// positive, PAYOUT_PAID is negative, and internal bucket moves carry the
// moved magnitude with no effect on the total. BalanceAfter records
// balance_total as committed, so replaying the log from zero reproduces the
// wallet exactly.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	WalletID     uuid.UUID       `json:"wallet_id"`
	Type         LedgerEntryType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	Reference    string          `json:"reference"` // originating payment / payout / released credit id
	CreatedAt    time.Time       `json:"created_at"`
}

// Apply folds one ledger entry into the balance state.
func (b *Balances) Apply(e *LedgerEntry) error {
	amount := e.Amount
	if amount < 0 {
		amount = -amount
	}

	switch e.Type {
	case LedgerSaleCredit:
		b.Total += amount
		b.Hold += amount
		b.TotalEarned += amount
	case LedgerHoldRelease:
		b.Hold -= amount
		b.Available += amount
	case LedgerPayoutReserve:
		b.Available -= amount
		b.PendingPayout += amount
	case LedgerPayoutPaid:
		b.PendingPayout -= amount
		b.Total -= amount
		b.TotalWithdrawn += amount
	case LedgerPayoutRejectedRefund:
		b.PendingPayout -= amount
		b.Available += amount
	default:
		return fmt.Errorf("unknown ledger entry type %q", e.Type)
	}

	if b.Available < 0 || b.Hold < 0 || b.PendingPayout < 0 || b.Total < 0 {
		return fmt.Errorf("ledger entry %s drives a balance negative", e.ID)
	}
	if b.Total != b.Available+b.Hold+b.PendingPayout {
		return fmt.Errorf("ledger entry %s breaks the balance identity", e.ID)
	}
	return nil
}

// Replay folds a wallet's full transaction log, in creation order, from a
// zero balance state. The result must equal the wallet's committed balances;
// this is the reconciliation audit check.
func Replay(entries []LedgerEntry) (Balances, error) {
	var b Balances
	for i := range entries {
		if err := b.Apply(&entries[i]); err != nil {
			return Balances{}, err
		}
	}
	return b, nil
}
