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

// seenEventTTL bounds the Redis fast-path memory of processed provider
// transaction references. The payment-status check under the row lock is
// the authoritative idempotency guard; the cache only short-circuits
// redelivery storms.
const seenEventTTL = 24 * time.Hour

// providerEvent is the parsed inbound webhook, reduced to the fields the
// state machine classifies on.
type providerEvent struct {
	TxRef        string // provider transaction id
	OrderRef     string // provider order identifier
	AmountCents  int64
	Currency     string
	Success      bool
	Pending      bool
	ErrorOccured bool
	IsRefunded   bool
}

// parseProviderEvent extracts the classification fields from a verified
// payload. Signature verification already proved the payload well-formed
// enough to hash; this parse is still defensive.
func parseProviderEvent(raw []byte) (*providerEvent, error) {
	var envelope struct {
		Obj struct {
			ID           json.Number `json:"id"`
			AmountCents  int64       `json:"amount_cents"`
			Currency     string      `json:"currency"`
			Success      bool        `json:"success"`
			Pending      bool        `json:"pending"`
			ErrorOccured bool        `json:"error_occured"`
			IsRefunded   bool        `json:"is_refunded"`
			Order        struct {
				ID json.Number `json:"id"`
			} `json:"order"`
		} `json:"obj"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding provider payload: %w", err)
	}
	if envelope.Obj.Order.ID.String() == "" {
		return nil, fmt.Errorf("provider payload has no order reference")
	}
	return &providerEvent{
		TxRef:        envelope.Obj.ID.String(),
		OrderRef:     envelope.Obj.Order.ID.String(),
		AmountCents:  envelope.Obj.AmountCents,
		Currency:     envelope.Obj.Currency,
		Success:      envelope.Obj.Success,
		Pending:      envelope.Obj.Pending,
		ErrorOccured: envelope.Obj.ErrorOccured,
		IsRefunded:   envelope.Obj.IsRefunded,
	}, nil
}

// targetStatus classifies a provider event into the payment state machine's
// target state: success-and-not-pending completes, an explicit failure flag
// fails, pending stays in flight.
func (e *providerEvent) targetStatus() domain.PaymentStatus {
	switch {
	case e.ErrorOccured || (!e.Success && !e.Pending):
		return domain.PaymentStatusFailed
	case e.Success && !e.Pending:
		return domain.PaymentStatusCompleted
	default:
		return domain.PaymentStatusProcessing
	}
}

// PaymentProcessorImpl implements ports.PaymentProcessor.
type PaymentProcessorImpl struct {
	sigVerifier ports.SignatureVerifier
	paymentRepo ports.PaymentRepository
	orderRepo   ports.OrderRepository
	walletRepo  ports.WalletRepository
	ledgerRepo  ports.LedgerRepository
	eventRepo   ports.WebhookEventRepository
	eventCache  ports.EventCache
	auditSvc    ports.AuditService
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewPaymentProcessor creates a new PaymentProcessorImpl.
func NewPaymentProcessor(
	sigVerifier ports.SignatureVerifier,
	paymentRepo ports.PaymentRepository,
	orderRepo ports.OrderRepository,
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	eventRepo ports.WebhookEventRepository,
	eventCache ports.EventCache,
	auditSvc ports.AuditService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentProcessorImpl {
	return &PaymentProcessorImpl{
		sigVerifier: sigVerifier,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		walletRepo:  walletRepo,
		ledgerRepo:  ledgerRepo,
		eventRepo:   eventRepo,
		eventCache:  eventCache,
		auditSvc:    auditSvc,
		transactor:  transactor,
		log:         log,
	}
}

// HandleWebhook consumes one provider delivery. Signature verification runs
// before any other side effect; the wallet credit, payment completion and
// order update commit as one atomic unit; every delivery is recorded in the
// webhook event log with its outcome.
func (s *PaymentProcessorImpl) HandleWebhook(ctx context.Context, raw []byte, sourceIP string) error {
	if !s.sigVerifier.Verify(raw) {
		s.recordEvent(ctx, raw, nil, domain.WebhookInvalidSignature, "signature mismatch", sourceIP)
		return apperror.ErrInvalidWebhookSignature()
	}

	evt, err := parseProviderEvent(raw)
	if err != nil {
		s.recordEvent(ctx, raw, nil, domain.WebhookError, err.Error(), sourceIP)
		return apperror.Validation("malformed provider payload")
	}

	// Fast path: this provider transaction already reached a terminal
	// outcome. Cache errors degrade to the authoritative DB check.
	if evt.TxRef != "" {
		seen, err := s.eventCache.Seen(ctx, evt.TxRef)
		if err != nil {
			s.log.Warn().Err(err).Str("provider_tx", evt.TxRef).Msg("event cache check failed, falling through to DB")
		} else if seen {
			s.recordEvent(ctx, raw, evt, domain.WebhookDuplicate, "", sourceIP)
			return nil
		}
	}

	payment, err := s.paymentRepo.GetByOrderRef(ctx, evt.OrderRef)
	if err != nil {
		s.recordEvent(ctx, raw, evt, domain.WebhookError, err.Error(), sourceIP)
		return apperror.InternalError(fmt.Errorf("resolve payment: %w", err))
	}
	if payment == nil {
		s.recordEvent(ctx, raw, evt, domain.WebhookUnmatched, "no payment for order reference", sourceIP)
		return apperror.ErrNotFound("payment")
	}

	target := evt.targetStatus()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.recordEvent(ctx, raw, evt, domain.WebhookError, err.Error(), sourceIP)
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-read under the row lock: two concurrent deliveries of the same
	// event serialize here, and the second sees COMPLETED.
	locked, err := s.paymentRepo.GetByOrderRefForUpdate(ctx, dbTx, evt.OrderRef)
	if err != nil {
		s.recordEvent(ctx, raw, evt, domain.WebhookError, err.Error(), sourceIP)
		return apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if locked == nil {
		s.recordEvent(ctx, raw, evt, domain.WebhookUnmatched, "payment vanished under lock", sourceIP)
		return apperror.ErrNotFound("payment")
	}

	if locked.Status == domain.PaymentStatusCompleted || !locked.CanTransitionTo(target) {
		// Redelivery or out-of-order event against a settled payment:
		// success without reapplying credit.
		s.recordEvent(ctx, raw, evt, domain.WebhookDuplicate, "", sourceIP)
		return nil
	}

	var credited int64
	switch target {
	case domain.PaymentStatusCompleted:
		credited, err = s.completePayment(ctx, dbTx, locked, evt)
	case domain.PaymentStatusFailed:
		err = s.failPayment(ctx, dbTx, locked)
	default:
		err = s.paymentRepo.UpdateStatus(ctx, dbTx, locked.ID, domain.PaymentStatusProcessing)
	}
	if err != nil {
		s.recordEvent(ctx, raw, evt, domain.WebhookError, err.Error(), sourceIP)
		return apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		s.recordEvent(ctx, raw, evt, domain.WebhookError, err.Error(), sourceIP)
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Terminal outcomes populate the fast path (best effort).
	if target != domain.PaymentStatusProcessing && evt.TxRef != "" {
		if err := s.eventCache.MarkSeen(ctx, evt.TxRef, seenEventTTL); err != nil {
			s.log.Warn().Err(err).Str("provider_tx", evt.TxRef).Msg("failed to cache processed event")
		}
	}

	s.recordEvent(ctx, raw, evt, domain.WebhookProcessed, "", sourceIP)

	details, _ := json.Marshal(map[string]any{
		"payment_id": locked.ID.String(),
		"order_ref":  evt.OrderRef,
		"target":     string(target),
		"credited":   credited,
	})
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionWebhookPayment,
		ResourceType: "payment",
		ResourceID:   locked.ID.String(),
		Details:      string(details),
		IPAddress:    sourceIP,
		CreatedAt:    time.Now().UTC(),
	})

	s.log.Info().
		Str("payment_id", locked.ID.String()).
		Str("order_ref", evt.OrderRef).
		Str("target", string(target)).
		Int64("credited", credited).
		Msg("webhook processed")

	return nil
}

// completePayment applies the atomic completion unit: payment status +
// provider reference, order status, wallet hold credit and the sale-credit
// ledger entry. All or nothing.
func (s *PaymentProcessorImpl) completePayment(ctx context.Context, dbTx pgx.Tx, p *domain.Payment, evt *providerEvent) (int64, error) {
	if err := s.paymentRepo.MarkCompleted(ctx, dbTx, p.ID, evt.TxRef); err != nil {
		return 0, fmt.Errorf("mark payment completed: %w", err)
	}
	if err := s.orderRepo.UpdateStatus(ctx, dbTx, p.OrderID, domain.OrderStatusPaid); err != nil {
		return 0, fmt.Errorf("mark order paid: %w", err)
	}

	wallet, err := s.walletRepo.GetByMerchantIDForUpdate(ctx, dbTx, p.MerchantID)
	if err != nil {
		return 0, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet == nil {
		return 0, fmt.Errorf("wallet missing for merchant %s", p.MerchantID)
	}

	wallet.BalanceTotal += p.MerchantAmount
	wallet.BalanceHold += p.MerchantAmount
	wallet.TotalEarned += p.MerchantAmount
	if err := wallet.CheckInvariant(); err != nil {
		return 0, err
	}

	if err := s.walletRepo.UpdateBalances(ctx, dbTx, wallet); err != nil {
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Type:         domain.LedgerSaleCredit,
		Amount:       p.MerchantAmount,
		BalanceAfter: wallet.BalanceTotal,
		Reference:    p.ID.String(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return 0, fmt.Errorf("append sale credit: %w", err)
	}
	return p.MerchantAmount, nil
}

// failPayment records the failed outcome. Funds were never credited, so
// there is no ledger mutation.
func (s *PaymentProcessorImpl) failPayment(ctx context.Context, dbTx pgx.Tx, p *domain.Payment) error {
	if err := s.paymentRepo.UpdateStatus(ctx, dbTx, p.ID, domain.PaymentStatusFailed); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if err := s.orderRepo.UpdateStatus(ctx, dbTx, p.OrderID, domain.OrderStatusFailed); err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	return nil
}

// recordEvent appends to the inbound webhook log, best effort: a log-sink
// failure must not mask the delivery outcome.
func (s *PaymentProcessorImpl) recordEvent(ctx context.Context, raw []byte, evt *providerEvent, outcome domain.WebhookOutcome, errNote, sourceIP string) {
	event := &domain.WebhookEvent{
		ID:         uuid.New(),
		Payload:    string(raw),
		Outcome:    outcome,
		SourceIP:   sourceIP,
		ReceivedAt: time.Now().UTC(),
	}
	if evt != nil {
		event.ProviderTxRef = evt.TxRef
		event.OrderRef = evt.OrderRef
	}
	if errNote != "" {
		event.Error = &errNote
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("outcome", string(outcome)).Msg("failed to persist webhook event")
	}
}
