package postgres

import (
	"context"
	"fmt"

	"marketplace-settlement/internal/core/domain"
)

// WebhookEventRepo implements ports.WebhookEventRepository: the append-only
// log of every inbound provider delivery and its outcome.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// Create inserts a webhook event record.
func (r *WebhookEventRepo) Create(ctx context.Context, e *domain.WebhookEvent) error {
	query := `INSERT INTO webhook_events (id, provider_tx_ref, order_ref, payload, outcome, error, source_ip, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.ProviderTxRef, e.OrderRef, e.Payload, e.Outcome, e.Error, e.SourceIP, e.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}
