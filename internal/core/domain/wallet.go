package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wallet is a merchant's settlement wallet. Balances are int64 minor units
// of a single currency, split across three buckets plus the derived total.
// Balances are mutated only inside the ledger's transactional apply path,
// never directly by request handlers.
type Wallet struct {
	ID                   uuid.UUID  `json:"id"`
	MerchantID           uuid.UUID  `json:"merchant_id"`
	Currency             string     `json:"currency"`
	BalanceTotal         int64      `json:"balance_total"`
	BalanceAvailable     int64      `json:"balance_available"`
	BalanceHold          int64      `json:"balance_hold"`
	BalancePendingPayout int64      `json:"balance_pending_payout"`
	TotalEarned          int64      `json:"total_earned"`
	TotalWithdrawn       int64      `json:"total_withdrawn"`
	HoldPeriodHours      int        `json:"hold_period_hours"`
	LastPayoutAt         *time.Time `json:"last_payout_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CheckInvariant verifies the accounting identity
// balance_total == balance_available + balance_hold + balance_pending_payout
// and that no bucket is negative. It must hold at every commit boundary.
func (w *Wallet) CheckInvariant() error {
	if w.BalanceAvailable < 0 || w.BalanceHold < 0 || w.BalancePendingPayout < 0 {
		return fmt.Errorf("wallet %s: negative balance bucket (available=%d hold=%d pending=%d)",
			w.ID, w.BalanceAvailable, w.BalanceHold, w.BalancePendingPayout)
	}
	sum := w.BalanceAvailable + w.BalanceHold + w.BalancePendingPayout
	if w.BalanceTotal != sum {
		return fmt.Errorf("wallet %s: balance_total %d != sum of buckets %d", w.ID, w.BalanceTotal, sum)
	}
	return nil
}

// HoldPeriod returns the configured hold duration for sale credits.
func (w *Wallet) HoldPeriod() time.Duration {
	return time.Duration(w.HoldPeriodHours) * time.Hour
}

// Balances is the replayable balance state of a wallet.
type Balances struct {
	Total          int64
	Available      int64
	Hold           int64
	PendingPayout  int64
	TotalEarned    int64
	TotalWithdrawn int64
}

// BalancesOf extracts the current balance state of a wallet.
func BalancesOf(w *Wallet) Balances {
	return Balances{
		Total:          w.BalanceTotal,
		Available:      w.BalanceAvailable,
		Hold:           w.BalanceHold,
		PendingPayout:  w.BalancePendingPayout,
		TotalEarned:    w.TotalEarned,
		TotalWithdrawn: w.TotalWithdrawn,
	}
}
