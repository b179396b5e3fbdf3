package handler

import (
	"net/http"

	"fractional-bonds/internal/adapter/http/middleware"
	"fractional-bonds/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	CatalogSvc     ports.CatalogService
	WalletSvc      ports.WalletService
	PurchaseSvc    ports.PurchaseService
	PortfolioSvc   ports.PortfolioService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.Limiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")
	v1.GET("/", Root)

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	bondHandler := NewBondHandler(deps.CatalogSvc)
	bonds := v1.Group("/bonds", rl("read"))
	{
		bonds.GET("", bondHandler.List)
		bonds.GET("/:id", bondHandler.Get)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	txHandler := NewTransactionHandler(deps.PurchaseSvc, deps.WalletSvc)
	portfolioHandler := NewPortfolioHandler(deps.PortfolioSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("read"), walletHandler.GetWallet)
		wallet.POST("/topup", rl("wallet_topup"), walletHandler.TopUp)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.GET("", rl("read"), txHandler.List)
		transactions.POST("/buy", rl("purchases"), txHandler.Buy)
	}

	v1.GET("/portfolio", jwtAuth, rl("read"), portfolioHandler.Get)

	return r
}

// WithCORS wraps the engine so preflight requests are answered before gin routing.
func WithCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderIdempotencyKey, middleware.HeaderRequestID},
		ExposedHeaders: []string{middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	})(h)
}
