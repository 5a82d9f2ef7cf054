package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// testModeSuffix marks payouts settled without a real bank transfer.
const testModeSuffix = " [TEST MODE]"

// PayoutAdminServiceImpl implements ports.PayoutAdminService. A nil transfer
// provider puts the service in test mode: approval settles the payout
// immediately with no outbound dispatch.
type PayoutAdminServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	payoutRepo ports.PayoutRepository
	bankRepo   ports.BankAccountRepository
	transfer   ports.BankTransferProvider
	auditSvc   ports.AuditService
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewPayoutAdminService creates a new PayoutAdminServiceImpl.
func NewPayoutAdminService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	payoutRepo ports.PayoutRepository,
	bankRepo ports.BankAccountRepository,
	transfer ports.BankTransferProvider,
	auditSvc ports.AuditService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PayoutAdminServiceImpl {
	return &PayoutAdminServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		payoutRepo: payoutRepo,
		bankRepo:   bankRepo,
		transfer:   transfer,
		auditSvc:   auditSvc,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Approve moves a PENDING payout to PROCESSING and dispatches the bank
// transfer outside the transaction. In test mode the payout settles
// immediately instead, clearly annotated and distinctly audited.
func (s *PayoutAdminServiceImpl) Approve(ctx context.Context, d ports.PayoutDecision) (*domain.PayoutRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, d.PayoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("payout request")
	}
	if payout.Status != domain.PayoutStatusPending {
		return nil, apperror.ErrPayoutStateConflict(string(payout.Status))
	}

	now := s.now()
	payout.ReviewedBy = &d.AdminID
	payout.ApprovedAt = &now
	notes := d.Notes

	if s.transfer == nil {
		// Test mode: settle without an outbound transfer. The annotation and
		// the distinct audit action keep this unmistakable in reporting.
		notes += testModeSuffix
		payout.AdminNotes = &notes
		payout.Status = domain.PayoutStatusPaid
		payout.PaidAt = &now

		if err := s.settleFromWallet(ctx, dbTx, payout, now); err != nil {
			return nil, err
		}
		if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}

		s.audit(ctx, d, domain.AuditActionPayoutTestPaid, payout, map[string]any{
			"amount_requested": payout.AmountRequested,
		})
		s.log.Warn().
			Str("payout_id", payout.ID.String()).
			Msg("payout settled in test mode, no bank transfer dispatched")
		return payout, nil
	}

	if notes != "" {
		payout.AdminNotes = &notes
	}
	payout.Status = domain.PayoutStatusProcessing
	if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit(ctx, d, domain.AuditActionPayoutApprove, payout, map[string]any{
		"amount_to_transfer": payout.AmountToTransfer,
	})

	// Dispatch after commit, never under the wallet lock. A dispatch failure
	// leaves the payout PROCESSING; ConfirmTransfer settles it once the
	// collaborator reports the outcome.
	s.dispatchTransfer(ctx, payout)

	return payout, nil
}

// dispatchTransfer sends the transfer instruction and records the provider
// reference on success. Failures are logged and left for confirmation.
func (s *PayoutAdminServiceImpl) dispatchTransfer(ctx context.Context, payout *domain.PayoutRequest) {
	bankAccount, err := s.bankRepo.GetByID(ctx, payout.BankAccountID)
	if err != nil || bankAccount == nil {
		s.log.Error().Err(err).
			Str("payout_id", payout.ID.String()).
			Msg("bank account unavailable for transfer dispatch")
		return
	}

	currency := "EGP"
	if wallet, err := s.walletRepo.GetByMerchantID(ctx, payout.MerchantID); err == nil && wallet != nil {
		currency = wallet.Currency
	}

	ref, err := s.transfer.Dispatch(ctx, ports.TransferInstruction{
		PayoutID:      payout.ID,
		Amount:        payout.AmountToTransfer,
		Currency:      currency,
		BankName:      bankAccount.BankName,
		AccountHolder: bankAccount.AccountHolder,
		AccountMasked: bankAccount.AccountMasked,
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("payout_id", payout.ID.String()).
			Msg("bank transfer dispatch failed, payout stays PROCESSING")
		return
	}

	if err := s.payoutRepo.SetTransferRef(ctx, payout.ID, ref); err != nil {
		s.log.Error().Err(err).
			Str("payout_id", payout.ID.String()).
			Str("transfer_ref", ref).
			Msg("failed to record transfer reference")
		return
	}
	payout.TransferRef = &ref
}

// Reject turns down a PENDING payout, refunding the reservation atomically
// with the status flip. A reason is mandatory.
func (s *PayoutAdminServiceImpl) Reject(ctx context.Context, d ports.PayoutDecision) (*domain.PayoutRequest, error) {
	if d.Reason == "" {
		return nil, apperror.ErrRejectionReasonRequired()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, d.PayoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("payout request")
	}
	if payout.Status != domain.PayoutStatusPending {
		return nil, apperror.ErrPayoutStateConflict(string(payout.Status))
	}

	wallet, err := s.walletRepo.GetByMerchantIDForUpdate(ctx, dbTx, payout.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	wallet.BalancePendingPayout -= payout.AmountRequested
	wallet.BalanceAvailable += payout.AmountRequested
	if err := wallet.CheckInvariant(); err != nil {
		return nil, apperror.InternalError(err)
	}

	now := s.now()
	payout.Status = domain.PayoutStatusRejected
	payout.RejectionReason = &d.Reason
	payout.ReviewedBy = &d.AdminID
	payout.RejectedAt = &now
	if d.Notes != "" {
		payout.AdminNotes = &d.Notes
	}

	if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if err := s.walletRepo.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refund reservation: %w", err))
	}
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Type:         domain.LedgerPayoutRejectedRefund,
		Amount:       payout.AmountRequested,
		BalanceAfter: wallet.BalanceTotal,
		Reference:    payout.ID.String(),
		CreatedAt:    now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append refund entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit(ctx, d, domain.AuditActionPayoutReject, payout, map[string]any{
		"reason":          d.Reason,
		"amount_refunded": payout.AmountRequested,
	})
	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("reason", d.Reason).
		Msg("payout rejected")

	return payout, nil
}

// ConfirmTransfer settles a PROCESSING payout once the banking collaborator
// reports the transfer complete. The wallet deduction and the PAID flip
// commit together.
func (s *PayoutAdminServiceImpl) ConfirmTransfer(ctx context.Context, d ports.PayoutDecision, transferRef string) (*domain.PayoutRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, d.PayoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("payout request")
	}
	if payout.Status != domain.PayoutStatusProcessing {
		return nil, apperror.ErrPayoutStateConflict(string(payout.Status))
	}

	now := s.now()
	payout.Status = domain.PayoutStatusPaid
	payout.PaidAt = &now
	if transferRef != "" {
		payout.TransferRef = &transferRef
	}

	if err := s.settleFromWallet(ctx, dbTx, payout, now); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit(ctx, d, domain.AuditActionPayoutConfirm, payout, map[string]any{
		"transfer_ref": transferRef,
		"amount_paid":  payout.AmountRequested,
	})
	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("transfer_ref", transferRef).
		Msg("payout confirmed paid")

	return payout, nil
}

// List returns payout requests, optionally filtered by status, newest first.
func (s *PayoutAdminServiceImpl) List(ctx context.Context, status *domain.PayoutStatus) ([]domain.PayoutRequest, error) {
	payouts, err := s.payoutRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payouts: %w", err))
	}
	return payouts, nil
}

// settleFromWallet removes a paid payout's full reservation from the wallet
// under the row lock: pending_payout and balance_total drop by the requested
// amount, total_withdrawn and last_payout_at advance.
func (s *PayoutAdminServiceImpl) settleFromWallet(ctx context.Context, dbTx pgx.Tx, payout *domain.PayoutRequest, now time.Time) error {
	wallet, err := s.walletRepo.GetByMerchantIDForUpdate(ctx, dbTx, payout.MerchantID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrNotFound("wallet")
	}

	wallet.BalancePendingPayout -= payout.AmountRequested
	wallet.BalanceTotal -= payout.AmountRequested
	wallet.TotalWithdrawn += payout.AmountRequested
	wallet.LastPayoutAt = &now
	if err := wallet.CheckInvariant(); err != nil {
		return apperror.InternalError(err)
	}

	if err := s.walletRepo.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return apperror.InternalError(fmt.Errorf("settle wallet: %w", err))
	}
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Type:         domain.LedgerPayoutPaid,
		Amount:       -payout.AmountRequested,
		BalanceAfter: wallet.BalanceTotal,
		Reference:    payout.ID.String(),
		CreatedAt:    now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("append payout paid: %w", err))
	}
	return nil
}

func (s *PayoutAdminServiceImpl) audit(ctx context.Context, d ports.PayoutDecision, action domain.AuditAction, payout *domain.PayoutRequest, details map[string]any) {
	raw, _ := json.Marshal(details)
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &d.AdminID,
		ActorRole:    string(domain.RoleAdmin),
		Action:       action,
		ResourceType: "payout_request",
		ResourceID:   payout.ID.String(),
		Details:      string(raw),
		IPAddress:    d.SourceIP,
		CreatedAt:    s.now(),
	})
}
