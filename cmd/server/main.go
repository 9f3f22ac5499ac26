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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/marketledger/internal/adapter/http"
	"github.com/iho/marketledger/internal/adapter/http/handler"
	"github.com/iho/marketledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/marketledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/marketledger/internal/adapter/repository/redis"
	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/auth"
	"github.com/iho/marketledger/internal/infrastructure/config"
	"github.com/iho/marketledger/internal/infrastructure/eventpublisher"
	"github.com/iho/marketledger/internal/infrastructure/identity"
	"github.com/iho/marketledger/internal/infrastructure/logger"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
	"github.com/iho/marketledger/internal/infrastructure/postgres"
	"github.com/iho/marketledger/internal/infrastructure/redis"
	"github.com/iho/marketledger/internal/usecase"
)

const (
	outboxRetention        = 7 * 24 * time.Hour
	rateLimitCleanupPeriod = 10 * time.Minute
	rateLimitIdle          = time.Hour
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	migrate     bool
	migrateOnly bool
	envFile     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "marketledger-server",
		Short:         "Marketplace billing ledger API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFiles(opts.envFile)
			if err != nil {
				log.Error().Err(err).Msg("failed to load configuration")
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, opts); err != nil {
				log.Error().Err(err).Msg("server stopped with error")
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply database migrations before serving")
	cmd.Flags().BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load if present")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, opts *options) error {
	appLogger := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "marketledger",
		Version: version,
	})
	log.Logger = appLogger

	if opts.migrate || opts.migrateOnly {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, appLogger); err != nil {
			return err
		}
		if opts.migrateOnly {
			return nil
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
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	appLogger.Info().Msg("connected to redis")

	m := metrics.New()

	policy, err := domain.NewCommissionPolicy(cfg.CommissionRate)
	if err != nil {
		return err
	}

	// Initialize repositories
	accountRepo := postgresRepo.NewAccountRepository(pool)
	transactionRepo := postgresRepo.NewTransactionRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	cache := redisRepo.NewCache(redisClient)

	deps := usecase.Deps{
		TxManager:         postgresRepo.NewTxManager(pool, postgresRepo.WithLockTimeout(cfg.LockTimeout)),
		Retrier:           postgresRepo.NewRetrier(logger.Component(appLogger, "retrier"), postgresRepo.WithRetryMetrics(m)),
		Accounts:          accountRepo,
		Transactions:      transactionRepo,
		Withdrawals:       postgresRepo.NewWithdrawalRepository(pool),
		Outbox:            outboxRepo,
		Audit:             auditRepo,
		IDGen:             postgresRepo.NewULIDGenerator(),
		Resolver:          identity.NewStaticResolver(cfg.PlatformPrincipalID),
		Metrics:           m,
		Logger:            appLogger,
		Currency:          cfg.Currency,
		MinimumWithdrawal: cfg.MinWithdrawalAmount,
	}

	// Initialize use cases
	accountUC := usecase.NewAccountUseCase(deps, policy, cache, cfg.ReportCacheTTL)
	distributionUC := usecase.NewDistributionUseCase(deps, policy, cache)
	withdrawalUC := usecase.NewWithdrawalUseCase(deps)
	adjustmentUC := usecase.NewAdjustmentUseCase(deps)
	reconciliationUC := usecase.NewReconciliationUseCase(accountRepo, transactionRepo,
		postgresRepo.NewLedgerRepository(pool), m, logger.Component(appLogger, "reconciliation"))

	platform, err := accountUC.EnsurePlatformAccount(ctx)
	if err != nil {
		return fmt.Errorf("ensure platform account: %w", err)
	}
	appLogger.Info().Str("principal_id", platform.PrincipalID).Msg("platform account ready")

	authenticator, err := newAuthenticator(cfg, m)
	if err != nil {
		return err
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		BillingHandler:      handler.NewBillingHandler(accountUC),
		WithdrawalHandler:   handler.NewWithdrawalHandler(withdrawalUC),
		DistributionHandler: handler.NewDistributionHandler(distributionUC),
		AdminHandler:        handler.NewAdminHandler(accountUC, withdrawalUC, adjustmentUC, reconciliationUC, auditRepo),
		HealthHandler:       handler.NewHealthHandler(pool, handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })),
		Authenticator:       authenticator,
		IdempotencyStore:    redisRepo.NewIdempotencyStore(redisClient),
		IdempotencyTTL:      cfg.IdempotencyTTL,
		RateLimiter:         rateLimiter,
		Logger:              appLogger,
		Metrics:             m,
		HTTPMetrics:         middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	relayLogger := logger.Component(appLogger, "outbox-relay")
	publisher, closePublisher := newPublisher(cfg, relayLogger)
	defer func() {
		if err := closePublisher(); err != nil {
			appLogger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()

	relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Logger:     relayLogger,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  outboxRetention,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox relay: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rateLimiter.Run(gctx, rateLimitCleanupPeriod, rateLimitIdle)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	appLogger.Info().Msg("server stopped")
	return nil
}

// newAuthenticator verifies bearer tokens when AUTH_ENABLED is set and
// trusts gateway identity headers otherwise.
func newAuthenticator(cfg *config.Config, m *metrics.Metrics) (func(http.Handler) http.Handler, error) {
	if !cfg.AuthEnabled {
		log.Warn().Msg("token authentication disabled, trusting identity headers")
		return middleware.HeaderIdentity(m), nil
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required when AUTH_ENABLED is set")
	}
	return middleware.Authenticate(auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration), m), nil
}

// newPublisher relays outbox events to Kafka when brokers are configured
// and to the log otherwise. The returned func releases the publisher.
func newPublisher(cfg *config.Config, l zerolog.Logger) (eventpublisher.Publisher, func() error) {
	if cfg.KafkaEnabled() {
		l.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing outbox events to kafka")
		p := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, p.Close
	}

	l.Info().Msg("no kafka brokers configured, logging outbox events")
	return eventpublisher.NewLogPublisher(l), func() error { return nil }
}
