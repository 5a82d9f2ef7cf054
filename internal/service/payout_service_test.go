package service

import (
	"context"
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type payoutTestDeps struct {
	svc          *PayoutServiceImpl
	merchantRepo *mocks.MockMerchantRepository
	walletRepo   *mocks.MockWalletRepository
	ledgerRepo   *mocks.MockLedgerRepository
	payoutRepo   *mocks.MockPayoutRepository
	bankRepo     *mocks.MockBankAccountRepository
	transactor   *mocks.MockDBTransactor
	ctrl         *gomock.Controller
}

func setupPayoutService(t *testing.T) *payoutTestDeps {
	ctrl := gomock.NewController(t)
	d := &payoutTestDeps{
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		walletRepo:   mocks.NewMockWalletRepository(ctrl),
		ledgerRepo:   mocks.NewMockLedgerRepository(ctrl),
		payoutRepo:   mocks.NewMockPayoutRepository(ctrl),
		bankRepo:     mocks.NewMockBankAccountRepository(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		ctrl:         ctrl,
	}
	fees, err := NewFeePolicy("1", 5, 100)
	require.NoError(t, err)
	d.svc = NewPayoutService(
		d.merchantRepo, d.walletRepo, d.ledgerRepo, d.payoutRepo, d.bankRepo,
		NewAuditService(nil, zerolog.Nop()),
		d.transactor, fees, zerolog.Nop(),
	)
	return d
}

func verifiedMerchant(id uuid.UUID) *domain.Merchant {
	return &domain.Merchant{
		ID:          id,
		Username:    "shop",
		Role:        domain.RoleMerchant,
		KYCStatus:   domain.KYCVerified,
		CanWithdraw: true,
	}
}

func verifiedBankAccount(id, merchantID uuid.UUID) *domain.BankAccount {
	return &domain.BankAccount{
		ID:            id,
		MerchantID:    merchantID,
		BankName:      "CIB",
		AccountHolder: "Shop Owner",
		AccountMasked: "****1234",
		Status:        domain.BankAccountVerified,
	}
}

// ==================== RequestPayout Tests ====================

func TestPayoutService_RequestPayout_Success(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	bankAccountID := uuid.New()
	walletID := uuid.New()
	tx := &mockTx{}

	wallet := &domain.Wallet{
		ID:               walletID,
		MerchantID:       merchantID,
		BalanceTotal:     1000,
		BalanceAvailable: 1000,
	}

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(verifiedMerchant(merchantID), nil)
	d.bankRepo.EXPECT().GetByID(ctx, bankAccountID).Return(verifiedBankAccount(bankAccountID, merchantID), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByMerchantIDForUpdate(ctx, tx, merchantID).Return(wallet, nil)
	d.payoutRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
			assert.Equal(t, int64(1000), w.BalanceTotal)
			assert.Equal(t, int64(400), w.BalanceAvailable)
			assert.Equal(t, int64(600), w.BalancePendingPayout)
			return nil
		})
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, domain.LedgerPayoutReserve, e.Type)
			assert.Equal(t, int64(600), e.Amount)
			assert.Equal(t, int64(1000), e.BalanceAfter)
			return nil
		})

	payout, err := d.svc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID:    merchantID,
		Amount:        600,
		BankAccountID: bankAccountID,
		SourceIP:      "1.2.3.4",
	})
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)
	assert.Equal(t, int64(600), payout.AmountRequested)
	// 1% of 600 = 6, plus fixed 5.
	assert.Equal(t, int64(11), payout.AmountFees)
	assert.Equal(t, int64(589), payout.AmountToTransfer)
}

func TestPayoutService_RequestPayout_KYCNotVerified(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	merchant := verifiedMerchant(merchantID)
	merchant.KYCStatus = domain.KYCPending

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(merchant, nil)

	_, err := d.svc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID: merchantID, Amount: 600, BankAccountID: uuid.New(),
	})
	assertAppError(t, err, "PO_001")
}

func TestPayoutService_RequestPayout_WithdrawalsBlocked(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	until := time.Now().UTC().Add(24 * time.Hour)
	merchant := verifiedMerchant(merchantID)
	merchant.WithdrawalBlockedUntil = &until

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(merchant, nil)

	_, err := d.svc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID: merchantID, Amount: 600, BankAccountID: uuid.New(),
	})
	assertAppError(t, err, "PO_002")
}

func TestPayoutService_RequestPayout_BankAccountNotOwned(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	bankAccountID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(verifiedMerchant(merchantID), nil)
	// Account belongs to a different merchant.
	d.bankRepo.EXPECT().GetByID(ctx, bankAccountID).Return(verifiedBankAccount(bankAccountID, uuid.New()), nil)

	_, err := d.svc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID: merchantID, Amount: 600, BankAccountID: bankAccountID,
	})
	assertAppError(t, err, "PO_003")
}

func TestPayoutService_RequestPayout_BelowMinimum(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	bankAccountID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(verifiedMerchant(merchantID), nil)
	d.bankRepo.EXPECT().GetByID(ctx, bankAccountID).Return(verifiedBankAccount(bankAccountID, merchantID), nil)

	_, err := d.svc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID: merchantID, Amount: 99, BankAccountID: bankAccountID,
	})
	assertAppError(t, err, "PO_004")
}

func TestPayoutService_RequestPayout_InsufficientBalance(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	bankAccountID := uuid.New()
	tx := &mockTx{}

	wallet := &domain.Wallet{
		ID:               uuid.New(),
		MerchantID:       merchantID,
		BalanceTotal:     1000,
		BalanceAvailable: 300,
		BalanceHold:      700,
	}

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(verifiedMerchant(merchantID), nil)
	d.bankRepo.EXPECT().GetByID(ctx, bankAccountID).Return(verifiedBankAccount(bankAccountID, merchantID), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByMerchantIDForUpdate(ctx, tx, merchantID).Return(wallet, nil)

	_, err := d.svc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID: merchantID, Amount: 600, BankAccountID: bankAccountID,
	})
	assertAppError(t, err, "PO_005")
}

// ==================== Cancel Tests ====================

func TestPayoutService_Cancel_ReversesReservation(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payoutID := uuid.New()
	tx := &mockTx{}

	payout := &domain.PayoutRequest{
		ID:              payoutID,
		MerchantID:      merchantID,
		AmountRequested: 600,
		Status:          domain.PayoutStatusPending,
	}
	wallet := &domain.Wallet{
		ID:                   uuid.New(),
		MerchantID:           merchantID,
		BalanceTotal:         1000,
		BalanceAvailable:     400,
		BalancePendingPayout: 600,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().GetByIDForUpdate(ctx, tx, payoutID).Return(payout, nil)
	d.walletRepo.EXPECT().GetByMerchantIDForUpdate(ctx, tx, merchantID).Return(wallet, nil)
	d.payoutRepo.EXPECT().Update(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest) error {
			assert.Equal(t, domain.PayoutStatusCancelled, p.Status)
			assert.NotNil(t, p.CancelledAt)
			return nil
		})
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
			assert.Equal(t, int64(1000), w.BalanceTotal)
			assert.Equal(t, int64(1000), w.BalanceAvailable)
			assert.Equal(t, int64(0), w.BalancePendingPayout)
			return nil
		})
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, domain.LedgerPayoutRejectedRefund, e.Type)
			assert.Equal(t, int64(600), e.Amount)
			assert.Equal(t, payoutID.String(), e.Reference)
			return nil
		})

	cancelled, err := d.svc.Cancel(ctx, merchantID, payoutID, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCancelled, cancelled.Status)
}

func TestPayoutService_Cancel_NotOwner(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payoutID := uuid.New()
	tx := &mockTx{}

	payout := &domain.PayoutRequest{
		ID:         payoutID,
		MerchantID: uuid.New(), // someone else's
		Status:     domain.PayoutStatusPending,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().GetByIDForUpdate(ctx, tx, payoutID).Return(payout, nil)

	_, err := d.svc.Cancel(ctx, uuid.New(), payoutID, "1.2.3.4")
	assertAppError(t, err, "RES_001")
}

func TestPayoutService_Cancel_AlreadyProcessing(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payoutID := uuid.New()
	tx := &mockTx{}

	payout := &domain.PayoutRequest{
		ID:         payoutID,
		MerchantID: merchantID,
		Status:     domain.PayoutStatusProcessing,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().GetByIDForUpdate(ctx, tx, payoutID).Return(payout, nil)

	_, err := d.svc.Cancel(ctx, merchantID, payoutID, "1.2.3.4")
	assertAppError(t, err, "PO_006")
}

// ==================== Fee Tests ====================

func TestFeePolicy_Fees(t *testing.T) {
	fees, err := NewFeePolicy("1", 5, 100)
	require.NoError(t, err)

	assert.Equal(t, int64(11), fees.Fees(600))
	assert.Equal(t, int64(15), fees.Fees(1000))
	assert.Equal(t, int64(6), fees.Fees(100))

	half, err := NewFeePolicy("2.5", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(25), half.Fees(1000))
	// 2.5% of 990 = 24.75, rounds half-up to 25.
	assert.Equal(t, int64(25), half.Fees(990))
}

func TestNewFeePolicy_Invalid(t *testing.T) {
	_, err := NewFeePolicy("abc", 0, 0)
	assert.Error(t, err)

	_, err = NewFeePolicy("-1", 0, 0)
	assert.Error(t, err)
}
