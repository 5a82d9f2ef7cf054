package service

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	merchantRepo ports.MerchantRepository
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
	auditSvc     ports.AuditService
	log          zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	merchantRepo ports.MerchantRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		merchantRepo: merchantRepo,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
		auditSvc:     auditSvc,
		log:          log,
	}
}

// Login verifies credentials and issues a role-scoped token. Unknown
// username and wrong password are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, domain.Role, error) {
	merchant, err := s.merchantRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, "", apperror.InternalError(err)
	}
	if merchant == nil {
		return "", time.Time{}, "", apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, merchant.PasswordHash)
	if err != nil || !ok {
		s.log.Warn().Str("username", username).Msg("failed login attempt")
		return "", time.Time{}, "", apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(merchant.ID, merchant.Role)
	if err != nil {
		return "", time.Time{}, "", apperror.InternalError(err)
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &merchant.ID,
		ActorRole:    string(merchant.Role),
		Action:       domain.AuditActionLogin,
		ResourceType: "merchant",
		ResourceID:   merchant.ID.String(),
		CreatedAt:    time.Now().UTC(),
	})

	return token, expiry, merchant.Role, nil
}
