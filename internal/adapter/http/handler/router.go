package handler

import (
	"marketplace-settlement/internal/adapter/http/middleware"
	redisStore "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PaymentSvc     ports.PaymentProcessor
	WalletSvc      ports.WalletService
	PayoutSvc      ports.PayoutService
	AdminSvc       ports.PayoutAdminService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// Provider webhook: authenticated by HMAC signature inside the payload,
	// not by JWT.
	webhookHandler := NewWebhookHandler(deps.PaymentSvc, deps.Logger)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/payment", rl("webhooks"), webhookHandler.HandlePaymentWebhook)
	}

	// --- JWT-authenticated merchant routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	merchantOnly := middleware.RequireRole(domain.RoleMerchant)

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallet", jwtAuth, merchantOnly)
	{
		wallet.GET("", rl("wallet"), walletHandler.GetBalance)
		wallet.POST("/release-holds", rl("wallet"), walletHandler.ReleaseHolds)
	}

	payoutHandler := NewPayoutHandler(deps.PayoutSvc)
	payouts := v1.Group("/payouts", jwtAuth, merchantOnly)
	{
		payouts.POST("", rl("payouts"), payoutHandler.Request)
		payouts.GET("", rl("payouts"), payoutHandler.List)
		payouts.POST("/:id/cancel", rl("payouts"), payoutHandler.Cancel)
	}

	// --- JWT-authenticated admin routes ---
	adminOnly := middleware.RequireRole(domain.RoleAdmin)
	adminHandler := NewAdminHandler(deps.AdminSvc)
	admin := v1.Group("/admin/payouts", jwtAuth, adminOnly)
	{
		admin.GET("", rl("admin"), adminHandler.List)
		admin.POST("/:id/approve", rl("admin"), adminHandler.Approve)
		admin.POST("/:id/reject", rl("admin"), adminHandler.Reject)
		admin.POST("/:id/confirm", rl("admin"), adminHandler.ConfirmTransfer)
	}

	return r
}
