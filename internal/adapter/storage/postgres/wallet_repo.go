package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, merchant_id, currency, balance_total, balance_available,
		balance_hold, balance_pending_payout, total_earned, total_withdrawn,
		hold_period_hours, last_payout_at, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.MerchantID, &w.Currency, &w.BalanceTotal, &w.BalanceAvailable,
		&w.BalanceHold, &w.BalancePendingPayout, &w.TotalEarned, &w.TotalWithdrawn,
		&w.HoldPeriodHours, &w.LastPayoutAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Create inserts a new wallet into the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, merchant_id, currency, balance_total, balance_available,
		balance_hold, balance_pending_payout, total_earned, total_withdrawn,
		hold_period_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.MerchantID, w.Currency, w.BalanceTotal, w.BalanceAvailable,
		w.BalanceHold, w.BalancePendingPayout, w.TotalEarned, w.TotalWithdrawn,
		w.HoldPeriodHours, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByMerchantID fetches a merchant's wallet (non-locking read).
func (r *WalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE merchant_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by merchant id: %w", err)
	}
	return w, nil
}

// GetByMerchantIDForUpdate fetches a merchant's wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE merchant_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpdateBalances persists all balance buckets and lifetime totals of an
// already-locked wallet within the transaction that locked it.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance_total = $1, balance_available = $2,
		balance_hold = $3, balance_pending_payout = $4, total_earned = $5,
		total_withdrawn = $6, last_payout_at = $7, updated_at = NOW()
		WHERE id = $8`

	tag, err := tx.Exec(ctx, query,
		w.BalanceTotal, w.BalanceAvailable, w.BalanceHold, w.BalancePendingPayout,
		w.TotalEarned, w.TotalWithdrawn, w.LastPayoutAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}
