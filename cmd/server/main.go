package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/clubmarket/internal/adapter/http"
	"github.com/iho/clubmarket/internal/adapter/http/handler"
	"github.com/iho/clubmarket/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/clubmarket/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/clubmarket/internal/adapter/repository/redis"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/auth"
	"github.com/iho/clubmarket/internal/infrastructure/config"
	"github.com/iho/clubmarket/internal/infrastructure/eventpublisher"
	"github.com/iho/clubmarket/internal/infrastructure/logger"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
	"github.com/iho/clubmarket/internal/infrastructure/postgres"
	"github.com/iho/clubmarket/internal/infrastructure/redis"
	"github.com/iho/clubmarket/internal/usecase"
)

const limiterIdleTimeout = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	appLogger := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "clubmarket",
	})
	logger.SetGlobal(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
	appLogger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) error {
	policy, err := domain.NewCounterPolicy(cfg.CounterMinRatio, cfg.CounterMaxRatio)
	if err != nil {
		return fmt.Errorf("invalid counter-offer policy: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, appLogger).Up(); err != nil {
			return err
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	offerRepo := postgresRepo.NewOfferRepository(pool)
	clubRepo := postgresRepo.NewClubRepository(pool)
	playerRepo := postgresRepo.NewPlayerRepository(pool)
	transferRepo := postgresRepo.NewTransferRepository(pool)
	walletRepo := postgresRepo.NewWalletRepository(pool)
	ruleRepo := postgresRepo.NewRuleRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier(appLogger, m)

	gate := redisRepo.NewMarketGate(redisClient, cfg.MarketOpenDefault, m)
	locker := redisRepo.NewLocker(redisClient, appLogger, m)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient, m)

	// Initialize use cases
	walletUC := usecase.NewWalletUseCase(txManager, walletRepo, ruleRepo, outboxRepo, auditRepo, idGen, retrier, m)
	settlementUC := usecase.NewSettlementUseCase(usecase.SettlementConfig{
		TxManager:    txManager,
		OfferRepo:    offerRepo,
		ClubRepo:     clubRepo,
		PlayerRepo:   playerRepo,
		TransferRepo: transferRepo,
		WalletRepo:   walletRepo,
		OutboxRepo:   outboxRepo,
		AuditRepo:    auditRepo,
		IDGen:        idGen,
		Locker:       locker,
		Retrier:      retrier,
		Metrics:      m,
		LockTTL:      cfg.SettlementLockTTL,
	})
	offerUC := usecase.NewOfferUseCase(usecase.OfferConfig{
		TxManager:  txManager,
		OfferRepo:  offerRepo,
		ClubRepo:   clubRepo,
		PlayerRepo: playerRepo,
		OutboxRepo: outboxRepo,
		IDGen:      idGen,
		Gate:       gate,
		Settlement: settlementUC,
		Policy:     policy,
		Retrier:    retrier,
		Metrics:    m,
	})
	marketUC := usecase.NewMarketUseCase(txManager, gate, outboxRepo, auditRepo, idGen, m)
	clubUC := usecase.NewClubUseCase(txManager, clubRepo, playerRepo, auditRepo, walletUC, idGen)
	ruleUC := usecase.NewRuleUseCase(txManager, ruleRepo, idGen)
	transferUC := usecase.NewTransferUseCase(transferRepo)
	reconciliationUC := usecase.NewReconciliationUseCase(walletRepo)
	repairUC := usecase.NewRepairUseCase(txManager, offerRepo, playerRepo, auditRepo, idGen)

	// Outbox relay
	publisher, closePublisher, err := newPublisher(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closePublisher()

	worker := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     &appLogger,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error().Err(err).Msg("outbox worker stopped")
		}
	}()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	go cleanupLimiters(workerCtx, rateLimiter)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		OfferHandler:          handler.NewOfferHandler(offerUC),
		TransferHandler:       handler.NewTransferHandler(transferUC),
		WalletHandler:         handler.NewWalletHandler(walletUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		MarketHandler:         handler.NewMarketHandler(marketUC),
		RuleHandler:           handler.NewRuleHandler(ruleUC, walletUC),
		ClubHandler:           handler.NewClubHandler(clubUC),
		RepairHandler:         handler.NewRepairHandler(repairUC),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           rateLimiter,
		JWTManager:            newJWTManager(cfg),
		Metrics:               m,
		Logger:                appLogger,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info().Str("port", cfg.HTTPPort).Bool("auth", cfg.AuthEnabled).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info().Msg("shutting down server...")
	case err := <-serverErr:
		stopWorker()
		<-workerDone
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	stopWorker()
	<-workerDone
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// newPublisher returns the Kafka sink when brokers are configured and the log sink otherwise.
func newPublisher(cfg *config.Config, appLogger zerolog.Logger) (eventpublisher.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return eventpublisher.NewLogPublisher(appLogger), func() {}, nil
	}

	kafka, err := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, appLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	return kafka, func() {
		if err := kafka.Close(); err != nil {
			appLogger.Warn().Err(err).Msg("failed to close kafka producer")
		}
	}, nil
}

// newJWTManager returns nil when authentication is disabled, which makes the API trust identity headers.
func newJWTManager(cfg *config.Config) *auth.JWTManager {
	if !cfg.AuthEnabled {
		return nil
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterIdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupLimiters(limiterIdleTimeout)
		}
	}
}
