package service

import (
	"context"
	"fmt"
	"testing"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type paymentTestDeps struct {
	svc         *PaymentProcessorImpl
	sigVerifier *mocks.MockSignatureVerifier
	paymentRepo *mocks.MockPaymentRepository
	orderRepo   *mocks.MockOrderRepository
	walletRepo  *mocks.MockWalletRepository
	ledgerRepo  *mocks.MockLedgerRepository
	eventRepo   *mocks.MockWebhookEventRepository
	eventCache  *mocks.MockEventCache
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupPaymentProcessor(t *testing.T) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	d := &paymentTestDeps{
		sigVerifier: mocks.NewMockSignatureVerifier(ctrl),
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		orderRepo:   mocks.NewMockOrderRepository(ctrl),
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		eventRepo:   mocks.NewMockWebhookEventRepository(ctrl),
		eventCache:  mocks.NewMockEventCache(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewPaymentProcessor(
		d.sigVerifier, d.paymentRepo, d.orderRepo, d.walletRepo, d.ledgerRepo,
		d.eventRepo, d.eventCache,
		NewAuditService(nil, zerolog.Nop()),
		d.transactor, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func webhookBody(txRef, orderRef string, success, pending, errorOccured bool) []byte {
	return []byte(fmt.Sprintf(
		`{"obj":{"id":%s,"amount_cents":1000,"currency":"EGP","success":%t,"pending":%t,"error_occured":%t,"order":{"id":%s}},"hmac":"irrelevant"}`,
		txRef, success, pending, errorOccured, orderRef,
	))
}

func TestPaymentProcessor_HandleWebhook_SuccessCreditsWallet(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	walletID := uuid.New()
	orderID := uuid.New()
	paymentID := uuid.New()
	tx := &mockTx{}
	raw := webhookBody("12345", "789", true, false, false)

	payment := &domain.Payment{
		ID:             paymentID,
		OrderID:        orderID,
		OrderRef:       "789",
		MerchantID:     merchantID,
		AmountTotal:    1000,
		PlatformFee:    100,
		MerchantAmount: 900,
		Status:         domain.PaymentStatusPending,
	}
	wallet := &domain.Wallet{
		ID:               walletID,
		MerchantID:       merchantID,
		BalanceTotal:     500,
		BalanceAvailable: 500,
	}

	d.sigVerifier.EXPECT().Verify(raw).Return(true)
	d.eventCache.EXPECT().Seen(ctx, "12345").Return(false, nil)
	d.paymentRepo.EXPECT().GetByOrderRef(ctx, "789").Return(payment, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByOrderRefForUpdate(ctx, tx, "789").Return(payment, nil)
	d.paymentRepo.EXPECT().MarkCompleted(ctx, tx, paymentID, "12345").Return(nil)
	d.orderRepo.EXPECT().UpdateStatus(ctx, tx, orderID, domain.OrderStatusPaid).Return(nil)
	d.walletRepo.EXPECT().GetByMerchantIDForUpdate(ctx, tx, merchantID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
			assert.Equal(t, int64(1400), w.BalanceTotal)
			assert.Equal(t, int64(900), w.BalanceHold)
			assert.Equal(t, int64(500), w.BalanceAvailable)
			assert.Equal(t, int64(900), w.TotalEarned)
			return nil
		})
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, domain.LedgerSaleCredit, e.Type)
			assert.Equal(t, int64(900), e.Amount)
			assert.Equal(t, int64(1400), e.BalanceAfter)
			assert.Equal(t, paymentID.String(), e.Reference)
			return nil
		})
	d.eventCache.EXPECT().MarkSeen(ctx, "12345", seenEventTTL).Return(nil)
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.WebhookEvent) error {
			assert.Equal(t, domain.WebhookProcessed, e.Outcome)
			return nil
		})

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	require.NoError(t, err)
}

func TestPaymentProcessor_HandleWebhook_InvalidSignature(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	raw := []byte(`{"obj":{},"hmac":"forged"}`)

	d.sigVerifier.EXPECT().Verify(raw).Return(false)
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.WebhookEvent) error {
			assert.Equal(t, domain.WebhookInvalidSignature, e.Outcome)
			return nil
		})

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	assertAppError(t, err, "SEC_001")
}

func TestPaymentProcessor_HandleWebhook_DuplicateByCache(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	raw := webhookBody("12345", "789", true, false, false)

	d.sigVerifier.EXPECT().Verify(raw).Return(true)
	d.eventCache.EXPECT().Seen(ctx, "12345").Return(true, nil)
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.WebhookEvent) error {
			assert.Equal(t, domain.WebhookDuplicate, e.Outcome)
			return nil
		})

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	require.NoError(t, err)
}

func TestPaymentProcessor_HandleWebhook_DuplicateByStatusUnderLock(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	raw := webhookBody("12345", "789", true, false, false)

	completed := &domain.Payment{
		ID:       uuid.New(),
		OrderRef: "789",
		Status:   domain.PaymentStatusCompleted,
	}

	d.sigVerifier.EXPECT().Verify(raw).Return(true)
	// Cache missed the first delivery; the row lock still catches it.
	d.eventCache.EXPECT().Seen(ctx, "12345").Return(false, nil)
	d.paymentRepo.EXPECT().GetByOrderRef(ctx, "789").Return(completed, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByOrderRefForUpdate(ctx, tx, "789").Return(completed, nil)
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.WebhookEvent) error {
			assert.Equal(t, domain.WebhookDuplicate, e.Outcome)
			return nil
		})

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	require.NoError(t, err)
}

func TestPaymentProcessor_HandleWebhook_UnmatchedOrder(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	raw := webhookBody("12345", "404", true, false, false)

	d.sigVerifier.EXPECT().Verify(raw).Return(true)
	d.eventCache.EXPECT().Seen(ctx, "12345").Return(false, nil)
	d.paymentRepo.EXPECT().GetByOrderRef(ctx, "404").Return(nil, nil)
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.WebhookEvent) error {
			assert.Equal(t, domain.WebhookUnmatched, e.Outcome)
			return nil
		})

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	assertAppError(t, err, "RES_001")
}

func TestPaymentProcessor_HandleWebhook_FailureDoesNotCredit(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	raw := webhookBody("12345", "789", false, false, true)

	payment := &domain.Payment{
		ID:       uuid.New(),
		OrderID:  uuid.New(),
		OrderRef: "789",
		Status:   domain.PaymentStatusPending,
	}

	d.sigVerifier.EXPECT().Verify(raw).Return(true)
	d.eventCache.EXPECT().Seen(ctx, "12345").Return(false, nil)
	d.paymentRepo.EXPECT().GetByOrderRef(ctx, "789").Return(payment, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByOrderRefForUpdate(ctx, tx, "789").Return(payment, nil)
	d.paymentRepo.EXPECT().UpdateStatus(ctx, tx, payment.ID, domain.PaymentStatusFailed).Return(nil)
	d.orderRepo.EXPECT().UpdateStatus(ctx, tx, payment.OrderID, domain.OrderStatusFailed).Return(nil)
	// Terminal outcome still populates the fast path.
	d.eventCache.EXPECT().MarkSeen(ctx, "12345", seenEventTTL).Return(nil)
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	require.NoError(t, err)
}

func TestPaymentProcessor_HandleWebhook_PendingKeepsProcessing(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	raw := webhookBody("12345", "789", false, true, false)

	payment := &domain.Payment{
		ID:       uuid.New(),
		OrderID:  uuid.New(),
		OrderRef: "789",
		Status:   domain.PaymentStatusPending,
	}

	d.sigVerifier.EXPECT().Verify(raw).Return(true)
	d.eventCache.EXPECT().Seen(ctx, "12345").Return(false, nil)
	d.paymentRepo.EXPECT().GetByOrderRef(ctx, "789").Return(payment, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByOrderRefForUpdate(ctx, tx, "789").Return(payment, nil)
	d.paymentRepo.EXPECT().UpdateStatus(ctx, tx, payment.ID, domain.PaymentStatusProcessing).Return(nil)
	// No MarkSeen: pending is not terminal, the success event must still land.
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	require.NoError(t, err)
}

func TestPaymentProcessor_HandleWebhook_CacheFailureFallsThrough(t *testing.T) {
	d := setupPaymentProcessor(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	raw := webhookBody("12345", "789", true, false, false)

	completed := &domain.Payment{
		ID:       uuid.New(),
		OrderRef: "789",
		Status:   domain.PaymentStatusCompleted,
	}

	d.sigVerifier.EXPECT().Verify(raw).Return(true)
	d.eventCache.EXPECT().Seen(ctx, "12345").Return(false, fmt.Errorf("redis down"))
	d.paymentRepo.EXPECT().GetByOrderRef(ctx, "789").Return(completed, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByOrderRefForUpdate(ctx, tx, "789").Return(completed, nil)
	d.eventRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	err := d.svc.HandleWebhook(ctx, raw, "1.2.3.4")
	require.NoError(t, err)
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
