package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWebhookPayment AuditAction = "WEBHOOK_PAYMENT"
	AuditActionHoldRelease    AuditAction = "HOLD_RELEASE"
	AuditActionPayoutRequest  AuditAction = "PAYOUT_REQUEST"
	AuditActionPayoutCancel   AuditAction = "PAYOUT_CANCEL"
	AuditActionPayoutApprove  AuditAction = "PAYOUT_APPROVE"
	AuditActionPayoutReject   AuditAction = "PAYOUT_REJECT"
	AuditActionPayoutConfirm  AuditAction = "PAYOUT_CONFIRM"
	// AuditActionPayoutTestPaid marks the degraded-mode immediate-paid path.
	// It must never be mistaken for a real transfer in reporting.
	AuditActionPayoutTestPaid AuditAction = "PAYOUT_TEST_PAID"
	AuditActionLogin          AuditAction = "LOGIN"
)

// AuditLog records a single audited state-changing action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    string      `json:"actor_role,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
