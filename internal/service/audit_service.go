package service

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/rs/zerolog"
)

// auditWriteTimeout bounds the detached audit write.
const auditWriteTimeout = 5 * time.Second

// AuditServiceImpl implements ports.AuditService. Writes are asynchronous
// and never fail the calling operation; a dropped audit entry is logged
// loudly instead.
type AuditServiceImpl struct {
	auditRepo ports.AuditRepository
	log       zerolog.Logger
}

// NewAuditService creates a new AuditServiceImpl. A nil repository disables
// persistence and logs entries only, which the tests use.
func NewAuditService(auditRepo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{auditRepo: auditRepo, log: log}
}

// Log records an audit entry without blocking the caller. The write runs on
// its own context so a cancelled request still leaves its audit trail.
func (s *AuditServiceImpl) Log(ctx context.Context, entry *domain.AuditLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if s.auditRepo == nil {
		s.log.Debug().
			Str("action", string(entry.Action)).
			Str("resource", entry.ResourceType).
			Msg("audit sink disabled, entry logged only")
		return
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()

		if err := s.auditRepo.Create(writeCtx, entry); err != nil {
			s.log.Error().Err(err).
				Str("action", string(entry.Action)).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Msg("failed to persist audit entry")
		}
	}()
}
