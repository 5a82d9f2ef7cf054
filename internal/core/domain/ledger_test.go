package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(typ LedgerEntryType, amount, after int64) LedgerEntry {
	return LedgerEntry{
		ID:           uuid.New(),
		WalletID:     uuid.New(),
		Type:         typ,
		Amount:       amount,
		BalanceAfter: after,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestReplay_FullLifecycleMatchesWallet(t *testing.T) {
	// Credit 1000, release it, reserve 600, pay it out.
	log := []LedgerEntry{
		entry(LedgerSaleCredit, 1000, 1000),
		entry(LedgerHoldRelease, 1000, 1000),
		entry(LedgerPayoutReserve, 600, 1000),
		entry(LedgerPayoutPaid, -600, 400),
	}

	b, err := Replay(log)
	require.NoError(t, err)
	assert.Equal(t, int64(400), b.Total)
	assert.Equal(t, int64(400), b.Available)
	assert.Equal(t, int64(0), b.Hold)
	assert.Equal(t, int64(0), b.PendingPayout)
	assert.Equal(t, int64(1000), b.TotalEarned)
	assert.Equal(t, int64(600), b.TotalWithdrawn)
}

func TestReplay_RejectedPayoutRestoresAvailable(t *testing.T) {
	log := []LedgerEntry{
		entry(LedgerSaleCredit, 1000, 1000),
		entry(LedgerHoldRelease, 1000, 1000),
		entry(LedgerPayoutReserve, 600, 1000),
		entry(LedgerPayoutRejectedRefund, 600, 1000),
	}

	b, err := Replay(log)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), b.Total)
	assert.Equal(t, int64(1000), b.Available)
	assert.Equal(t, int64(0), b.PendingPayout)
}

func TestReplay_NegativeBucketFails(t *testing.T) {
	// Releasing more than is held must fail, not wrap.
	log := []LedgerEntry{
		entry(LedgerSaleCredit, 500, 500),
		entry(LedgerHoldRelease, 600, 500),
	}
	_, err := Replay(log)
	assert.Error(t, err)
}

func TestReplay_UnknownTypeFails(t *testing.T) {
	log := []LedgerEntry{entry("MYSTERY", 100, 100)}
	_, err := Replay(log)
	assert.Error(t, err)
}

func TestWallet_CheckInvariant(t *testing.T) {
	w := &Wallet{
		ID:                   uuid.New(),
		BalanceTotal:         1000,
		BalanceAvailable:     400,
		BalanceHold:          0,
		BalancePendingPayout: 600,
	}
	require.NoError(t, w.CheckInvariant())

	w.BalanceTotal = 999
	assert.Error(t, w.CheckInvariant())

	w.BalanceTotal = 1000
	w.BalanceAvailable = -1
	assert.Error(t, w.CheckInvariant())
}
