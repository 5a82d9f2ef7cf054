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
	"github.com/rs/zerolog"
)

// PayoutServiceImpl implements ports.PayoutService, the merchant side of the
// payout lifecycle: request and cancel.
type PayoutServiceImpl struct {
	merchantRepo ports.MerchantRepository
	walletRepo   ports.WalletRepository
	ledgerRepo   ports.LedgerRepository
	payoutRepo   ports.PayoutRepository
	bankRepo     ports.BankAccountRepository
	auditSvc     ports.AuditService
	transactor   ports.DBTransactor
	fees         FeePolicy
	log          zerolog.Logger
	now          func() time.Time
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	merchantRepo ports.MerchantRepository,
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	payoutRepo ports.PayoutRepository,
	bankRepo ports.BankAccountRepository,
	auditSvc ports.AuditService,
	transactor ports.DBTransactor,
	fees FeePolicy,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		merchantRepo: merchantRepo,
		walletRepo:   walletRepo,
		ledgerRepo:   ledgerRepo,
		payoutRepo:   payoutRepo,
		bankRepo:     bankRepo,
		auditSvc:     auditSvc,
		transactor:   transactor,
		fees:         fees,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RequestPayout validates the merchant's withdrawal and reserves the funds.
// Preconditions run in a fixed order so a merchant failing several gets the
// same error every time: KYC, withdrawal block, bank account, minimum,
// then balance under the wallet lock.
func (s *PayoutServiceImpl) RequestPayout(ctx context.Context, in ports.PayoutRequestInput) (*domain.PayoutRequest, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, in.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}
	if merchant.KYCStatus != domain.KYCVerified {
		return nil, apperror.ErrKYCNotVerified()
	}
	if blocked, until := merchant.WithdrawalsBlocked(s.now()); blocked {
		return nil, apperror.ErrWithdrawalsBlocked(until)
	}

	bankAccount, err := s.bankRepo.GetByID(ctx, in.BankAccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load bank account: %w", err))
	}
	if bankAccount == nil || bankAccount.MerchantID != in.MerchantID || !bankAccount.IsVerified() {
		return nil, apperror.ErrBankAccountNotVerified()
	}

	if in.Amount < s.fees.Minimum {
		return nil, apperror.ErrBelowMinimumWithdrawal(s.fees.Minimum)
	}
	feeAmount := s.fees.Fees(in.Amount)
	toTransfer := in.Amount - feeAmount
	if toTransfer <= 0 {
		return nil, apperror.Validation("requested amount does not cover fees")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByMerchantIDForUpdate(ctx, dbTx, in.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.BalanceAvailable < in.Amount {
		return nil, apperror.ErrInsufficientBalance()
	}

	wallet.BalanceAvailable -= in.Amount
	wallet.BalancePendingPayout += in.Amount
	if err := wallet.CheckInvariant(); err != nil {
		return nil, apperror.InternalError(err)
	}

	payout := &domain.PayoutRequest{
		ID:               uuid.New(),
		MerchantID:       in.MerchantID,
		BankAccountID:    in.BankAccountID,
		AmountRequested:  in.Amount,
		AmountFees:       feeAmount,
		AmountToTransfer: toTransfer,
		Status:           domain.PayoutStatusPending,
		Note:             in.Note,
		RequestedAt:      s.now(),
	}

	if err := s.payoutRepo.Create(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout: %w", err))
	}
	if err := s.walletRepo.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reserve funds: %w", err))
	}
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Type:         domain.LedgerPayoutReserve,
		Amount:       in.Amount,
		BalanceAfter: wallet.BalanceTotal,
		Reference:    payout.ID.String(),
		CreatedAt:    s.now(),
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append payout reserve: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit(ctx, in.MerchantID, domain.RoleMerchant, domain.AuditActionPayoutRequest, payout, in.SourceIP, map[string]any{
		"amount_requested":   in.Amount,
		"amount_fees":        feeAmount,
		"amount_to_transfer": toTransfer,
	})
	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("merchant_id", in.MerchantID.String()).
		Int64("amount", in.Amount).
		Int64("fees", feeAmount).
		Msg("payout requested")

	return payout, nil
}

// Cancel lets the merchant withdraw a still-PENDING request. The status flip
// and the reservation reversal commit together; a cancelled payout never
// leaves funds stranded in pending_payout.
func (s *PayoutServiceImpl) Cancel(ctx context.Context, merchantID, payoutID uuid.UUID, sourceIP string) (*domain.PayoutRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil || payout.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("payout request")
	}
	if payout.Status != domain.PayoutStatusPending {
		return nil, apperror.ErrPayoutStateConflict(string(payout.Status))
	}

	wallet, err := s.walletRepo.GetByMerchantIDForUpdate(ctx, dbTx, merchantID)
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
	payout.Status = domain.PayoutStatusCancelled
	payout.CancelledAt = &now

	if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if err := s.walletRepo.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("release reservation: %w", err))
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

	s.audit(ctx, merchantID, domain.RoleMerchant, domain.AuditActionPayoutCancel, payout, sourceIP, map[string]any{
		"amount_refunded": payout.AmountRequested,
	})
	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("merchant_id", merchantID.String()).
		Msg("payout cancelled")

	return payout, nil
}

// ListForMerchant returns the merchant's payout history, newest first.
func (s *PayoutServiceImpl) ListForMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.PayoutRequest, error) {
	payouts, err := s.payoutRepo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payouts: %w", err))
	}
	return payouts, nil
}

func (s *PayoutServiceImpl) audit(ctx context.Context, actorID uuid.UUID, role domain.Role, action domain.AuditAction, payout *domain.PayoutRequest, sourceIP string, details map[string]any) {
	raw, _ := json.Marshal(details)
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actorID,
		ActorRole:    string(role),
		Action:       action,
		ResourceType: "payout_request",
		ResourceID:   payout.ID.String(),
		Details:      string(raw),
		IPAddress:    sourceIP,
		CreatedAt:    s.now(),
	})
}
