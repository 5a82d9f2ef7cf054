package postgres

import (
	"context"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. The ledger_entries table has
// no UPDATE or DELETE path anywhere in the codebase; entries are immutable
// once committed.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts a ledger entry within the transaction that mutated the
// wallet, so entry and balances commit or roll back together.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, wallet_id, entry_type, amount, balance_after, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.Type, e.Amount, e.BalanceAfter, e.Reference, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByWallet returns a wallet's full transaction log in commit order.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT id, wallet_id, entry_type, amount, balance_after, reference, created_at
		FROM ledger_entries WHERE wallet_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// UnreleasedCredits returns SALE_CREDIT entries with no HOLD_RELEASE entry
// referencing them, oldest first. The reference column of a HOLD_RELEASE
// entry holds the id of the credit it released.
func (r *LedgerRepo) UnreleasedCredits(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT c.id, c.wallet_id, c.entry_type, c.amount, c.balance_after, c.reference, c.created_at
		FROM ledger_entries c
		WHERE c.wallet_id = $1 AND c.entry_type = $2
		AND NOT EXISTS (
			SELECT 1 FROM ledger_entries r
			WHERE r.wallet_id = c.wallet_id AND r.entry_type = $3 AND r.reference = c.id::text
		)
		ORDER BY c.created_at ASC, c.id ASC`

	rows, err := r.pool.Query(ctx, query, walletID, domain.LedgerSaleCredit, domain.LedgerHoldRelease)
	if err != nil {
		return nil, fmt.Errorf("list unreleased credits: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func scanLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Type, &e.Amount, &e.BalanceAfter, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
