package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makershopapp/makershop/internal/cache"
	"github.com/makershopapp/makershop/internal/config"
	"github.com/makershopapp/makershop/internal/db"
	"github.com/makershopapp/makershop/internal/email"
	"github.com/makershopapp/makershop/internal/handlers"
	"github.com/makershopapp/makershop/internal/jobs"
	"github.com/makershopapp/makershop/internal/logging"
	"github.com/makershopapp/makershop/internal/policy"
	"github.com/makershopapp/makershop/internal/services"
	"github.com/makershopapp/makershop/internal/stripe"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
	Completer     *jobs.Completer

	sentryEnabled bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	sentryEnabled := cfg.SentryDSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
	}

	logger := newLogger(cfg, sentryEnabled)

	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.ResendAPIKey,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	returnStore := db.NewReturnStore(database)
	disputeStore := db.NewDisputeStore(database)

	payments := stripe.NewPlatformClient(cfg.StripeSecretKey)
	emailSender := services.NewProviderOrderEmailSender(emailProvider)

	fulfillmentService := services.NewFulfillmentService(orderStore, payments, pol, emailSender, logger.With("component", "fulfillment_service"))
	returnService := services.NewReturnService(returnStore, orderStore, payments, pol, emailSender, logger.With("component", "return_service"))
	disputeService := services.NewDisputeService(disputeStore, orderStore, payments, emailSender, logger.With("component", "dispute_service"))

	completer, err := jobs.NewCompleter(fulfillmentService, cfg.CompletionSweepInterval, logger)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize completer: %w", err)
	}

	h, err := handlers.New(handlers.Dependencies{
		Config:             cfg,
		DB:                 database,
		FulfillmentService: fulfillmentService,
		ReturnService:      returnService,
		DisputeService:     disputeService,
		CacheProvider:      cacheProvider,
		Logger:             logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
		Completer:     completer,
		sentryEnabled: sentryEnabled,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

func newLogger(cfg *config.Config, sentryEnabled bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var base slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		base = slog.NewJSONHandler(os.Stdout, opts)
	default:
		base = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if sentryEnabled {
		sentryHandler := sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelError},
			LogLevel:   []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError},
		}.NewSentryHandler(context.Background())
		return slog.New(logging.Fanout(base, sentryHandler))
	}

	return slog.New(base)
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
