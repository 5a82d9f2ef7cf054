package ports

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

// MerchantRepository defines read access to merchant financial identities.
// KYC and withdrawal flags are inputs to payout validation; this core never
// writes them.
type MerchantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Merchant, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// row locking; every read-then-write of balances must go through them.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Wallet, error)
	// UpdateBalances persists all balance buckets, lifetime totals and
	// last_payout_at of an already-locked wallet.
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// LedgerRepository is the append-only transaction log of a wallet.
// Entries are immutable once written and totally ordered by commit time.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error)
	// UnreleasedCredits returns SALE_CREDIT entries with no HOLD_RELEASE
	// entry referencing them, oldest first.
	UnreleasedCredits(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error)
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error)
	// GetByOrderRefForUpdate re-reads the payment under a row lock so the
	// completed-at-most-once guard holds against concurrent redeliveries.
	GetByOrderRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Payment, error)
	// MarkCompleted sets status COMPLETED and records the unique provider
	// transaction reference.
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, providerRef string) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error
}

// OrderRepository updates the order outcome alongside its payment.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error
}

// PayoutRepository defines persistence operations for payout requests.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error)
	Update(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	// SetTransferRef records the bank-transfer provider reference after the
	// outbound dispatch, outside the wallet-row lock.
	SetTransferRef(ctx context.Context, id uuid.UUID, transferRef string) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.PayoutRequest, error)
	ListByStatus(ctx context.Context, status *domain.PayoutStatus) ([]domain.PayoutRequest, error)
}

// BankAccountRepository reads payout destinations; verification is owned
// elsewhere.
type BankAccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error)
}

// WebhookEventRepository is the append-only inbound delivery log.
type WebhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
