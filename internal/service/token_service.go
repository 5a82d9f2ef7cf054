package service

import (
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenClaims is the JWT claim set: the actor identity plus the role the
// middleware authorizes against.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenServiceImpl implements ports.TokenService with HS256-signed JWTs.
type TokenServiceImpl struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService creates a new TokenServiceImpl.
func NewTokenService(secret string, ttl time.Duration, issuer string) *TokenServiceImpl {
	return &TokenServiceImpl{secret: []byte(secret), ttl: ttl, issuer: issuer}
}

// Generate issues a token for the actor, returning it with its expiry.
func (s *TokenServiceImpl) Generate(actorID uuid.UUID, role domain.Role) (string, time.Time, error) {
	now := time.Now().UTC()
	expiry := now.Add(s.ttl)

	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiry, nil
}

// Validate parses and verifies a token, rejecting any signing method other
// than the one we issue.
func (s *TokenServiceImpl) Validate(tokenString string) (*ports.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	role := domain.Role(claims.Role)
	if role != domain.RoleMerchant && role != domain.RoleAdmin {
		return nil, fmt.Errorf("unknown role claim %q", claims.Role)
	}

	return &ports.TokenClaims{ActorID: actorID, Role: role}, nil
}
