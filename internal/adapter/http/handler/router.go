package handler

import (
	"wallet-ledger-service/internal/adapter/http/middleware"
	redisStore "wallet-ledger-service/internal/adapter/storage/redis"
	"wallet-ledger-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	WalletSvc      ports.WalletService
	UserRepo       ports.UserRepository
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	TokenDenylist  *redisStore.TokenDenylist  // nil = revocation disabled
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

	// Health check (deep, verifies PostgreSQL + Redis)
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

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.TokenDenylist, deps.Logger)

	authHandler := NewAuthHandler(deps.AuthSvc, deps.TokenDenylist)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/logout", jwtAuth, authHandler.Logout)
	}

	userHandler := NewUserHandler(deps.UserRepo)
	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.WalletSvc)

	users := v1.Group("/users", jwtAuth)
	{
		users.GET("/me", rl("wallet_read"), userHandler.GetProfile)
	}

	wallets := v1.Group("/wallets/me", jwtAuth)
	{
		wallets.GET("", rl("wallet_read"), walletHandler.GetWallet)
		wallets.GET("/transactions", rl("wallet_read"), walletHandler.ListTransactions)
		wallets.POST("/deposit", rl("wallet_write"), walletHandler.Deposit)
		wallets.POST("/withdraw", rl("wallet_write"), walletHandler.Withdraw)
		wallets.POST("/transfer", rl("wallet_write"), walletHandler.Transfer)
	}

	return r
}
