package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, merchant_id, bank_account_id, amount_requested, amount_fees,
		amount_to_transfer, status, note, admin_notes, rejection_reason, reviewed_by,
		transfer_ref, requested_at, approved_at, paid_at, rejected_at, cancelled_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

func scanPayout(row pgx.Row) (*domain.PayoutRequest, error) {
	p := &domain.PayoutRequest{}
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.BankAccountID, &p.AmountRequested, &p.AmountFees,
		&p.AmountToTransfer, &p.Status, &p.Note, &p.AdminNotes, &p.RejectionReason,
		&p.ReviewedBy, &p.TransferRef, &p.RequestedAt, &p.ApprovedAt, &p.PaidAt,
		&p.RejectedAt, &p.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new payout request inside the transaction that reserved
// its funds.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `INSERT INTO payout_requests (id, merchant_id, bank_account_id, amount_requested,
		amount_fees, amount_to_transfer, status, note, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.MerchantID, p.BankAccountID, p.AmountRequested,
		p.AmountFees, p.AmountToTransfer, p.Status, p.Note, p.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout request: %w", err)
	}
	return nil
}

// GetByID fetches a payout request (non-locking read).
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`

	p, err := scanPayout(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout by id: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate fetches a payout request with pessimistic locking so
// concurrent decisions on the same request serialize.
// This MUST be called within a transaction.
func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1 FOR UPDATE`

	p, err := scanPayout(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout for update: %w", err)
	}
	return p, nil
}

// Update persists the mutable decision fields of an already-locked payout.
func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `UPDATE payout_requests SET status = $1, admin_notes = $2, rejection_reason = $3,
		reviewed_by = $4, transfer_ref = $5, approved_at = $6, paid_at = $7,
		rejected_at = $8, cancelled_at = $9
		WHERE id = $10`

	tag, err := tx.Exec(ctx, query,
		p.Status, p.AdminNotes, p.RejectionReason, p.ReviewedBy, p.TransferRef,
		p.ApprovedAt, p.PaidAt, p.RejectedAt, p.CancelledAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payout request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout request not found: %s", p.ID)
	}
	return nil
}

// SetTransferRef records the bank-transfer provider reference after the
// outbound dispatch, outside any wallet lock.
func (r *PayoutRepo) SetTransferRef(ctx context.Context, id uuid.UUID, transferRef string) error {
	query := `UPDATE payout_requests SET transfer_ref = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, transferRef, id)
	if err != nil {
		return fmt.Errorf("set transfer ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout request not found: %s", id)
	}
	return nil
}

// ListByMerchant returns a merchant's payout requests, newest first.
func (r *PayoutRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests
		WHERE merchant_id = $1 ORDER BY requested_at DESC`

	rows, err := r.pool.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list payouts by merchant: %w", err)
	}
	defer rows.Close()

	return scanPayouts(rows)
}

// ListByStatus returns payout requests, optionally filtered, newest first.
func (r *PayoutRepo) ListByStatus(ctx context.Context, status *domain.PayoutStatus) ([]domain.PayoutRequest, error) {
	var rows pgx.Rows
	var err error
	if status != nil {
		query := `SELECT ` + payoutColumns + ` FROM payout_requests
			WHERE status = $1 ORDER BY requested_at DESC`
		rows, err = r.pool.Query(ctx, query, *status)
	} else {
		query := `SELECT ` + payoutColumns + ` FROM payout_requests ORDER BY requested_at DESC`
		rows, err = r.pool.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list payouts by status: %w", err)
	}
	defer rows.Close()

	return scanPayouts(rows)
}

func scanPayouts(rows pgx.Rows) ([]domain.PayoutRequest, error) {
	var payouts []domain.PayoutRequest
	for rows.Next() {
		var p domain.PayoutRequest
		if err := rows.Scan(
			&p.ID, &p.MerchantID, &p.BankAccountID, &p.AmountRequested, &p.AmountFees,
			&p.AmountToTransfer, &p.Status, &p.Note, &p.AdminNotes, &p.RejectionReason,
			&p.ReviewedBy, &p.TransferRef, &p.RequestedAt, &p.ApprovedAt, &p.PaidAt,
			&p.RejectedAt, &p.CancelledAt,
		); err != nil {
			return nil, fmt.Errorf("scan payout request: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout requests: %w", err)
	}
	return payouts, nil
}
