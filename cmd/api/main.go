package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fractional-bonds/config"
	httpHandler "fractional-bonds/internal/adapter/http/handler"
	"fractional-bonds/internal/adapter/http/middleware"
	"fractional-bonds/internal/adapter/messaging/rabbitmq"
	"fractional-bonds/internal/adapter/storage/memory"
	pgStorage "fractional-bonds/internal/adapter/storage/postgres"
	redisStorage "fractional-bonds/internal/adapter/storage/redis"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/internal/service"
	"fractional-bonds/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// repositories is the storage backend selected by storage.driver.
type repositories struct {
	users       ports.UserRepository
	wallets     ports.WalletRepository
	instruments ports.InstrumentRepository
	purchases   ports.PurchaseRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Fractional Bond API")

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	healthCheckers := []ports.HealthChecker{repos.health}

	// Redis is optional: without it idempotency falls back to the database
	// and rate limiting is disabled.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   middleware.Limiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	publisher := newPublisher(cfg.AMQP, log)
	defer publisher.close()

	startingBalance, _ := cfg.Wallet.StartingAmount() // checked by Validate
	hashSvc := service.NewBcryptHashService(bcrypt.DefaultCost)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	authSvc := service.NewAuthService(repos.users, repos.wallets, repos.transactor, hashSvc, tokenSvc,
		startingBalance, logger.Component(log, "auth"))
	catalogSvc := service.NewCatalogService(repos.instruments, service.DefaultCatalog(), logger.Component(log, "catalog"))
	walletSvc := service.NewWalletService(repos.wallets, repos.purchases, publisher, logger.Component(log, "wallet"))
	purchaseSvc := service.NewPurchaseService(
		repos.instruments,
		repos.wallets,
		repos.purchases,
		repos.idempotency,
		idempotencyCache,
		publisher,
		repos.transactor,
		logger.Component(log, "purchase"),
	)
	portfolioSvc := service.NewPortfolioService(repos.purchases, repos.instruments)
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))

	if cfg.Storage.Seed {
		if _, err := catalogSvc.Seed(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed bond catalog")
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		CatalogSvc:     catalogSvc,
		WalletSvc:      walletSvc,
		PurchaseSvc:    purchaseSvc,
		PortfolioSvc:   portfolioSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		Logger:         logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpHandler.WithCORS(router, cfg.CORS.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			users:       store.Users(),
			wallets:     store.Wallets(),
			instruments: store.Instruments(),
			purchases:   store.Purchases(),
			idempotency: store.Idempotency(),
			audit:       store.Audit(),
			transactor:  store,
			health:      store,
			close:       func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("Database schema applied")
	}

	return &repositories{
		users:       pgStorage.NewUserRepo(pool),
		wallets:     pgStorage.NewWalletRepo(pool),
		instruments: pgStorage.NewInstrumentRepo(pool),
		purchases:   pgStorage.NewPurchaseRepo(pool),
		idempotency: pgStorage.NewIdempotencyRepo(pool),
		audit:       pgStorage.NewAuditRepo(pool),
		transactor:  pgStorage.NewTransactor(pool),
		health:      pgStorage.NewHealthCheck(pool),
		close:       pool.Close,
	}, nil
}

// eventPublisher pairs the active publisher with its shutdown hook.
type eventPublisher struct {
	ports.EventPublisher
	close func()
}

func newPublisher(cfg config.AMQPConfig, log zerolog.Logger) eventPublisher {
	pubLog := logger.Component(log, "events")
	if cfg.URL == "" {
		log.Info().Msg("AMQP URL not set, domain events are logged only")
		return eventPublisher{EventPublisher: rabbitmq.NewNoopPublisher(pubLog), close: func() {}}
	}

	producer, err := rabbitmq.NewEventProducer(cfg.URL, cfg.Exchange, pubLog)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, domain events are logged only")
		return eventPublisher{EventPublisher: rabbitmq.NewNoopPublisher(pubLog), close: func() {}}
	}
	log.Info().Str("exchange", cfg.Exchange).Msg("RabbitMQ connected")
	return eventPublisher{EventPublisher: producer, close: producer.Close}
}
