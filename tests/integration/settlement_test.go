package integration

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/service"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "integration-test-secret"

// signedWebhook builds a provider payload carrying a genuine HMAC-SHA512
// signature over the documented field concatenation.
func signedWebhook(txID, orderRef int64, success, pending, errorOccured bool) []byte {
	b := func(v bool) string { return fmt.Sprintf("%t", v) }

	// Concatenation order: amount_cents, created_at, currency, error_occured,
	// has_parent_transaction, id, integration_id, is_3d_secure, is_auth,
	// is_capture, is_refunded, is_standalone_payment, is_voided, order.id,
	// owner, pending, source_data.pan, source_data.sub_type,
	// source_data.type, success.
	concat := "100000" +
		"2024-06-01T10:00:00" +
		"EGP" +
		b(errorOccured) +
		"false" +
		fmt.Sprintf("%d", txID) +
		"4001" +
		"true" +
		"false" +
		"false" +
		"false" +
		"true" +
		"false" +
		fmt.Sprintf("%d", orderRef) +
		"901" +
		b(pending) +
		"2345" +
		"MasterCard" +
		"card" +
		b(success)

	mac := hmac.New(sha512.New, []byte(webhookSecret))
	mac.Write([]byte(concat))
	sig := hex.EncodeToString(mac.Sum(nil))

	return []byte(fmt.Sprintf(`{"obj":{`+
		`"amount_cents":100000,`+
		`"created_at":"2024-06-01T10:00:00",`+
		`"currency":"EGP",`+
		`"error_occured":%t,`+
		`"has_parent_transaction":false,`+
		`"id":%d,`+
		`"integration_id":4001,`+
		`"is_3d_secure":true,`+
		`"is_auth":false,`+
		`"is_capture":false,`+
		`"is_refunded":false,`+
		`"is_standalone_payment":true,`+
		`"is_voided":false,`+
		`"order":{"id":%d},`+
		`"owner":901,`+
		`"pending":%t,`+
		`"source_data":{"pan":"2345","sub_type":"MasterCard","type":"card"},`+
		`"success":%t`+
		`},"hmac":"%s"}`,
		errorOccured, txID, orderRef, pending, success, sig))
}

// testEnv wires the full service stack onto in-memory storage.
type testEnv struct {
	merchantRepo *inMemoryMerchantRepo
	walletRepo   *inMemoryWalletRepo
	ledgerRepo   *inMemoryLedgerRepo
	paymentRepo  *inMemoryPaymentRepo
	orderRepo    *inMemoryOrderRepo
	payoutRepo   *inMemoryPayoutRepo
	bankRepo     *inMemoryBankAccountRepo
	webhookRepo  *inMemoryWebhookEventRepo
	eventCache   *inMemoryEventCache

	paymentSvc ports.PaymentProcessor
	walletSvc  ports.WalletService
	payoutSvc  ports.PayoutService
	adminSvc   ports.PayoutAdminService

	merchantID    uuid.UUID
	walletID      uuid.UUID
	bankAccountID uuid.UUID
	adminID       uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		merchantRepo: newInMemoryMerchantRepo(),
		walletRepo:   newInMemoryWalletRepo(),
		ledgerRepo:   newInMemoryLedgerRepo(),
		paymentRepo:  newInMemoryPaymentRepo(),
		orderRepo:    newInMemoryOrderRepo(),
		payoutRepo:   newInMemoryPayoutRepo(),
		bankRepo:     newInMemoryBankAccountRepo(),
		webhookRepo:  newInMemoryWebhookEventRepo(),
		eventCache:   newInMemoryEventCache(),
		merchantID:   uuid.New(),
		walletID:     uuid.New(),
		adminID:      uuid.New(),
	}

	now := time.Now().UTC()
	env.merchantRepo.add(&domain.Merchant{
		ID:          env.merchantID,
		Username:    "seller1",
		Role:        domain.RoleMerchant,
		KYCStatus:   domain.KYCVerified,
		CanWithdraw: true,
		CreatedAt:   now,
	})

	require.NoError(t, env.walletRepo.Create(context.Background(), &domain.Wallet{
		ID:         env.walletID,
		MerchantID: env.merchantID,
		Currency:   "EGP",
		// Zero hold period: sale credits mature immediately.
		HoldPeriodHours: 0,
		CreatedAt:       now,
	}))

	env.bankAccountID = uuid.New()
	env.bankRepo.add(&domain.BankAccount{
		ID:            env.bankAccountID,
		MerchantID:    env.merchantID,
		BankName:      "CIB",
		AccountHolder: "Seller One",
		AccountMasked: "****1234",
		Status:        domain.BankAccountVerified,
		CreatedAt:     now,
	})

	log := zerolog.Nop()
	transactor := newSerialTransactor()
	auditSvc := service.NewAuditService(newInMemoryAuditRepo(), log)
	sigVerifier := service.NewProviderSignatureVerifier(webhookSecret)

	fees, err := service.NewFeePolicy("1", 5, 100)
	require.NoError(t, err)

	env.paymentSvc = service.NewPaymentProcessor(
		sigVerifier, env.paymentRepo, env.orderRepo, env.walletRepo, env.ledgerRepo,
		env.webhookRepo, env.eventCache, auditSvc, transactor, log,
	)
	env.walletSvc = service.NewWalletService(env.walletRepo, env.ledgerRepo, auditSvc, transactor, log)
	env.payoutSvc = service.NewPayoutService(
		env.merchantRepo, env.walletRepo, env.ledgerRepo, env.payoutRepo, env.bankRepo,
		auditSvc, transactor, fees, log,
	)
	// No transfer provider: approvals settle immediately in test mode.
	env.adminSvc = service.NewPayoutAdminService(
		env.walletRepo, env.ledgerRepo, env.payoutRepo, env.bankRepo, nil,
		auditSvc, transactor, log,
	)

	return env
}

// seedPendingPayment creates an order plus a PENDING payment awaiting its
// provider webhook. The merchant's share is merchantAmount.
func (env *testEnv) seedPendingPayment(t *testing.T, orderRef string, merchantAmount int64) *domain.Payment {
	t.Helper()
	now := time.Now().UTC()

	order := &domain.Order{
		ID:         uuid.New(),
		MerchantID: env.merchantID,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
	}
	require.NoError(t, env.orderRepo.Create(context.Background(), order))

	payment := &domain.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		OrderRef:       orderRef,
		MerchantID:     env.merchantID,
		AmountTotal:    merchantAmount + merchantAmount/4,
		PlatformFee:    merchantAmount / 4,
		MerchantAmount: merchantAmount,
		Currency:       "EGP",
		Status:         domain.PaymentStatusPending,
		CreatedAt:      now,
	}
	require.NoError(t, env.paymentRepo.Create(context.Background(), payment))
	return payment
}

func (env *testEnv) wallet(t *testing.T) *domain.Wallet {
	t.Helper()
	w, err := env.walletRepo.GetByMerchantID(context.Background(), env.merchantID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w
}

// replayMatchesWallet asserts that folding the full ledger from zero
// reproduces the committed wallet balances.
func (env *testEnv) replayMatchesWallet(t *testing.T) {
	t.Helper()
	w := env.wallet(t)
	entries, err := env.ledgerRepo.ListByWallet(context.Background(), w.ID)
	require.NoError(t, err)

	replayed, err := domain.Replay(entries)
	require.NoError(t, err)
	assert.Equal(t, domain.BalancesOf(w), replayed, "ledger replay must reproduce wallet balances")
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestFullSettlementLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	payment := env.seedPendingPayment(t, "7001", 1000)

	// 1. Provider confirms the charge: 1000 lands in hold.
	err := env.paymentSvc.HandleWebhook(ctx, signedWebhook(50001, 7001, true, false, false), "10.0.0.1")
	require.NoError(t, err)

	w := env.wallet(t)
	assert.Equal(t, int64(1000), w.BalanceTotal)
	assert.Equal(t, int64(1000), w.BalanceHold)
	assert.Equal(t, int64(0), w.BalanceAvailable)
	assert.Equal(t, int64(1000), w.TotalEarned)

	got, err := env.paymentRepo.GetByOrderRef(ctx, "7001")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
	require.NotNil(t, got.ProviderRef)
	assert.Equal(t, "50001", *got.ProviderRef)
	assert.Equal(t, domain.OrderStatusPaid, env.orderRepo.get(payment.OrderID).Status)

	// 2. The hold matures (zero hold period) and is released.
	released, err := env.walletSvc.ReleaseDueHolds(ctx, env.merchantID)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	w = env.wallet(t)
	assert.Equal(t, int64(1000), w.BalanceAvailable)
	assert.Equal(t, int64(0), w.BalanceHold)

	// 3. Merchant requests a 600 payout: 1% + 5 fixed = 11 fees, 589 to transfer.
	payout, err := env.payoutSvc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID:    env.merchantID,
		Amount:        600,
		BankAccountID: env.bankAccountID,
		SourceIP:      "10.0.0.2",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)
	assert.Equal(t, int64(11), payout.AmountFees)
	assert.Equal(t, int64(589), payout.AmountToTransfer)

	w = env.wallet(t)
	assert.Equal(t, int64(400), w.BalanceAvailable)
	assert.Equal(t, int64(600), w.BalancePendingPayout)
	assert.Equal(t, int64(1000), w.BalanceTotal)

	// 4. Admin rejects: the reservation returns to available in full.
	rejected, err := env.adminSvc.Reject(ctx, ports.PayoutDecision{
		PayoutID: payout.ID,
		AdminID:  env.adminID,
		Reason:   "bank detail mismatch",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusRejected, rejected.Status)

	w = env.wallet(t)
	assert.Equal(t, int64(1000), w.BalanceAvailable)
	assert.Equal(t, int64(0), w.BalancePendingPayout)
	assert.Equal(t, int64(1000), w.BalanceTotal)

	// 5. Second attempt is approved; with no transfer provider configured it
	//    settles immediately.
	payout2, err := env.payoutSvc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID:    env.merchantID,
		Amount:        600,
		BankAccountID: env.bankAccountID,
	})
	require.NoError(t, err)

	paid, err := env.adminSvc.Approve(ctx, ports.PayoutDecision{
		PayoutID: payout2.ID,
		AdminID:  env.adminID,
		Notes:    "verified manually",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPaid, paid.Status)

	w = env.wallet(t)
	assert.Equal(t, int64(400), w.BalanceTotal)
	assert.Equal(t, int64(400), w.BalanceAvailable)
	assert.Equal(t, int64(0), w.BalancePendingPayout)
	assert.Equal(t, int64(600), w.TotalWithdrawn)
	assert.NotNil(t, w.LastPayoutAt)

	// 6. Reconciliation: the ledger replays to the committed balances.
	env.replayMatchesWallet(t)
}

func TestWebhookRedeliveryCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedPendingPayment(t, "7002", 900)

	raw := signedWebhook(50002, 7002, true, false, false)

	require.NoError(t, env.paymentSvc.HandleWebhook(ctx, raw, "10.0.0.1"))
	// Provider redelivers the identical event.
	require.NoError(t, env.paymentSvc.HandleWebhook(ctx, raw, "10.0.0.1"))

	w := env.wallet(t)
	assert.Equal(t, int64(900), w.BalanceTotal, "redelivery must not credit twice")
	assert.Equal(t, int64(900), w.TotalEarned)

	assert.Equal(t, 1, env.webhookRepo.countByOutcome(domain.WebhookProcessed))
	assert.Equal(t, 1, env.webhookRepo.countByOutcome(domain.WebhookDuplicate))
	env.replayMatchesWallet(t)
}

func TestWebhookOutOfOrderFailureAfterSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedPendingPayment(t, "7003", 500)

	require.NoError(t, env.paymentSvc.HandleWebhook(ctx, signedWebhook(50003, 7003, true, false, false), "10.0.0.1"))

	// A stale failure event for the same order arrives late. The settled
	// payment must not move.
	err := env.paymentSvc.HandleWebhook(ctx, signedWebhook(50004, 7003, false, false, true), "10.0.0.1")
	require.NoError(t, err)

	got, err := env.paymentRepo.GetByOrderRef(ctx, "7003")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
	assert.Equal(t, int64(500), env.wallet(t).BalanceTotal)
}

func TestForgedWebhookRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedPendingPayment(t, "7004", 800)

	// Valid payload, then tamper with the amount without re-signing.
	raw := signedWebhook(50005, 7004, true, false, false)
	forged := []byte(strings.Replace(string(raw), `"amount_cents":100000`, `"amount_cents":999999`, 1))

	err := env.paymentSvc.HandleWebhook(ctx, forged, "203.0.113.9")
	assertCode(t, err, "SEC_001")

	w := env.wallet(t)
	assert.Equal(t, int64(0), w.BalanceTotal, "forged delivery must not credit")
	assert.Equal(t, 1, env.webhookRepo.countByOutcome(domain.WebhookInvalidSignature))

	got, err := env.paymentRepo.GetByOrderRef(ctx, "7004")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)
}

func TestConcurrentPayoutsExactlyOneSucceeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedPendingPayment(t, "7005", 1000)

	require.NoError(t, env.paymentSvc.HandleWebhook(ctx, signedWebhook(50006, 7005, true, false, false), "10.0.0.1"))
	_, err := env.walletSvc.ReleaseDueHolds(ctx, env.merchantID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), env.wallet(t).BalanceAvailable)

	// Two 700 payouts race over 1000 available.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.payoutSvc.RequestPayout(ctx, ports.PayoutRequestInput{
				MerchantID:    env.merchantID,
				Amount:        700,
				BankAccountID: env.bankAccountID,
			})
		}(i)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assertCode(t, err, "PO_005")
			failed++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one payout must win the race")
	assert.Equal(t, 1, failed)

	w := env.wallet(t)
	assert.Equal(t, int64(300), w.BalanceAvailable)
	assert.Equal(t, int64(700), w.BalancePendingPayout)
	env.replayMatchesWallet(t)
}

func TestMerchantCancelReversesReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedPendingPayment(t, "7006", 1000)

	require.NoError(t, env.paymentSvc.HandleWebhook(ctx, signedWebhook(50007, 7006, true, false, false), "10.0.0.1"))
	_, err := env.walletSvc.ReleaseDueHolds(ctx, env.merchantID)
	require.NoError(t, err)

	payout, err := env.payoutSvc.RequestPayout(ctx, ports.PayoutRequestInput{
		MerchantID:    env.merchantID,
		Amount:        600,
		BankAccountID: env.bankAccountID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(400), env.wallet(t).BalanceAvailable)

	cancelled, err := env.payoutSvc.Cancel(ctx, env.merchantID, payout.ID, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCancelled, cancelled.Status)

	w := env.wallet(t)
	assert.Equal(t, int64(1000), w.BalanceAvailable)
	assert.Equal(t, int64(0), w.BalancePendingPayout)
	env.replayMatchesWallet(t)
}
