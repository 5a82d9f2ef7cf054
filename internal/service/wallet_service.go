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

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	auditSvc   ports.AuditService
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	auditSvc ports.AuditService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		auditSvc:   auditSvc,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetBalance returns the wallet's bucket view plus a projection of the next
// hold release: the oldest unreleased sale credit and when it matures.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, merchantID uuid.UUID) (*ports.WalletView, error) {
	wallet, err := s.walletRepo.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	view := &ports.WalletView{Wallet: *wallet}

	credits, err := s.ledgerRepo.UnreleasedCredits(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load unreleased credits: %w", err))
	}
	if len(credits) > 0 {
		oldest := credits[0]
		view.NextRelease = &ports.HoldProjection{
			Amount:     oldest.Amount,
			ReleasesAt: oldest.CreatedAt.Add(wallet.HoldPeriod()),
		}
	}
	return view, nil
}

// ReleaseDueHolds moves every matured sale credit from hold to available.
// Each credit releases in its own transaction so a failure mid-batch leaves
// the earlier releases committed and the later ones retryable.
func (s *WalletServiceImpl) ReleaseDueHolds(ctx context.Context, merchantID uuid.UUID) (int, error) {
	wallet, err := s.walletRepo.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("load wallet: %w", err))
	}
	if wallet == nil {
		return 0, apperror.ErrNotFound("wallet")
	}

	credits, err := s.ledgerRepo.UnreleasedCredits(ctx, wallet.ID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("load unreleased credits: %w", err))
	}

	now := s.now()
	holdPeriod := wallet.HoldPeriod()
	released := 0
	var releasedAmount int64

	for i := range credits {
		credit := &credits[i]
		if credit.CreatedAt.Add(holdPeriod).After(now) {
			// Credits come back oldest first; the first immature one ends
			// the due prefix.
			break
		}
		if err := s.releaseCredit(ctx, merchantID, credit); err != nil {
			if released > 0 {
				s.log.Error().Err(err).
					Str("credit_id", credit.ID.String()).
					Int("released_so_far", released).
					Msg("hold release batch interrupted")
				break
			}
			return 0, err
		}
		released++
		releasedAmount += credit.Amount
	}

	if released > 0 {
		details, _ := json.Marshal(map[string]any{
			"credits_released": released,
			"amount":           releasedAmount,
		})
		s.auditSvc.Log(ctx, &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      &merchantID,
			ActorRole:    string(domain.RoleMerchant),
			Action:       domain.AuditActionHoldRelease,
			ResourceType: "wallet",
			ResourceID:   wallet.ID.String(),
			Details:      string(details),
			CreatedAt:    s.now(),
		})
	}
	return released, nil
}

// releaseCredit moves one credit's amount from hold to available and appends
// the HOLD_RELEASE entry referencing it, atomically under the wallet lock.
func (s *WalletServiceImpl) releaseCredit(ctx context.Context, merchantID uuid.UUID, credit *domain.LedgerEntry) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByMerchantIDForUpdate(ctx, dbTx, merchantID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrNotFound("wallet")
	}

	wallet.BalanceHold -= credit.Amount
	wallet.BalanceAvailable += credit.Amount
	if err := wallet.CheckInvariant(); err != nil {
		return apperror.InternalError(err)
	}

	if err := s.walletRepo.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Type:         domain.LedgerHoldRelease,
		Amount:       credit.Amount,
		BalanceAfter: wallet.BalanceTotal,
		Reference:    credit.ID.String(),
		CreatedAt:    s.now(),
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("append hold release: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("credit_id", credit.ID.String()).
		Int64("amount", credit.Amount).
		Msg("hold released")
	return nil
}
