package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, order_id, order_ref, merchant_id, amount_total, platform_fee,
		merchant_amount, currency, provider_ref, status, metadata, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.OrderID, &p.OrderRef, &p.MerchantID, &p.AmountTotal, &p.PlatformFee,
		&p.MerchantAmount, &p.Currency, &p.ProviderRef, &p.Status, &p.Metadata,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new payment.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (id, order_id, order_ref, merchant_id, amount_total,
		platform_fee, merchant_amount, currency, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.OrderID, p.OrderRef, p.MerchantID, p.AmountTotal,
		p.PlatformFee, p.MerchantAmount, p.Currency, p.Status, p.Metadata,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByOrderRef fetches a payment by its provider-side order identifier.
func (r *PaymentRepo) GetByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_ref = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, orderRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by order ref: %w", err)
	}
	return p, nil
}

// GetByOrderRefForUpdate re-reads the payment under a row lock.
// This MUST be called within a transaction.
func (r *PaymentRepo) GetByOrderRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_ref = $1 FOR UPDATE`

	p, err := scanPayment(tx.QueryRow(ctx, query, orderRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment for update: %w", err)
	}
	return p, nil
}

// MarkCompleted flips the payment to COMPLETED and records the provider
// transaction reference. The provider_ref column carries a unique index, so
// the same provider transaction can never complete two payments.
func (r *PaymentRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, providerRef string) error {
	query := `UPDATE payments SET status = $1, provider_ref = $2, updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, domain.PaymentStatusCompleted, providerRef, id)
	if err != nil {
		return fmt.Errorf("mark payment completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// UpdateStatus updates the payment status within a transaction.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}
