package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankAccountRepo implements ports.BankAccountRepository.
type BankAccountRepo struct {
	pool Pool
}

// NewBankAccountRepo creates a new BankAccountRepo.
func NewBankAccountRepo(pool Pool) *BankAccountRepo {
	return &BankAccountRepo{pool: pool}
}

// GetByID fetches a bank account by UUID.
func (r *BankAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT id, merchant_id, bank_name, account_holder, account_masked, status, created_at
		FROM bank_accounts WHERE id = $1`

	b := &domain.BankAccount{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.MerchantID, &b.BankName, &b.AccountHolder, &b.AccountMasked,
		&b.Status, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bank account by id: %w", err)
	}
	return b, nil
}
