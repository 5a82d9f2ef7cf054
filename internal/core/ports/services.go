package ports

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// SignatureVerifier decides whether a raw webhook payload genuinely
// originates from the payment provider. It never errors on malformed input;
// malformed means not authentic. It must run before any side effect of
// webhook processing.
type SignatureVerifier interface {
	Verify(raw []byte) bool
}

// TokenService handles role-scoped JWT operations.
type TokenService interface {
	Generate(actorID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ActorID uuid.UUID
	Role    domain.Role
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// EventCache is the Redis fast path of webhook idempotency: provider
// transaction references that already reached a terminal outcome. The
// payment status check under the row lock remains the authoritative guard.
type EventCache interface {
	Seen(ctx context.Context, providerTxRef string) (bool, error)
	MarkSeen(ctx context.Context, providerTxRef string, ttl time.Duration) error
}

// TransferInstruction is the outbound bank-transfer order for an approved
// payout. Amount is amount_to_transfer, not amount_requested.
type TransferInstruction struct {
	PayoutID      uuid.UUID
	Amount        int64
	Currency      string
	BankName      string
	AccountHolder string
	AccountMasked string
}

// BankTransferProvider dispatches transfer instructions to the external
// banking collaborator. Dispatch must be called outside any wallet-row lock
// and applies its own bounded timeout; a timeout means "processing, confirm
// later", not failure.
type BankTransferProvider interface {
	Dispatch(ctx context.Context, instr TransferInstruction) (string, error)
}

// AuditService records every state-changing financial or administrative
// action for forensic review.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// PaymentProcessor is the payment state machine consuming verified provider
// webhooks. A nil return means the delivery was handled (including the
// duplicate no-op); errors are classified AppErrors the webhook handler
// acknowledges with success:false so the provider redelivers.
type PaymentProcessor interface {
	HandleWebhook(ctx context.Context, raw []byte, sourceIP string) error
}

// WalletView is the merchant-facing read model of a wallet.
type WalletView struct {
	Wallet      domain.Wallet
	NextRelease *HoldProjection
}

// HoldProjection projects when held funds next become available.
type HoldProjection struct {
	Amount     int64
	ReleasesAt time.Time
}

// WalletService exposes balances and drives the scheduled hold release.
type WalletService interface {
	GetBalance(ctx context.Context, merchantID uuid.UUID) (*WalletView, error)
	// ReleaseDueHolds moves every matured, unreleased sale credit from hold
	// to available, one atomic transaction per credit. Returns the count of
	// released credits.
	ReleaseDueHolds(ctx context.Context, merchantID uuid.UUID) (int, error)
}

// PayoutRequestInput is the validated merchant withdrawal request.
type PayoutRequestInput struct {
	MerchantID    uuid.UUID
	Amount        int64
	BankAccountID uuid.UUID
	Note          *string
	SourceIP      string
}

// PayoutService handles merchant-side payout requests.
type PayoutService interface {
	RequestPayout(ctx context.Context, in PayoutRequestInput) (*domain.PayoutRequest, error)
	Cancel(ctx context.Context, merchantID, payoutID uuid.UUID, sourceIP string) (*domain.PayoutRequest, error)
	ListForMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.PayoutRequest, error)
}

// PayoutDecision carries the admin identity for approve/reject/confirm.
type PayoutDecision struct {
	PayoutID uuid.UUID
	AdminID  uuid.UUID
	Notes    string
	Reason   string
	SourceIP string
}

// PayoutAdminService is the admin-operated payout state machine.
type PayoutAdminService interface {
	Approve(ctx context.Context, d PayoutDecision) (*domain.PayoutRequest, error)
	Reject(ctx context.Context, d PayoutDecision) (*domain.PayoutRequest, error)
	// ConfirmTransfer is the external confirmation boundary marking a
	// PROCESSING payout PAID once the banking collaborator settles it.
	ConfirmTransfer(ctx context.Context, d PayoutDecision, transferRef string) (*domain.PayoutRequest, error)
	List(ctx context.Context, status *domain.PayoutStatus) ([]domain.PayoutRequest, error)
}

// AuthService is the login boundary issuing role-scoped tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, domain.Role, error)
}
