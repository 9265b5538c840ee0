package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"rideledger/internal/app"
	"rideledger/internal/broker"
	"rideledger/internal/config"
	"rideledger/internal/handler"
	"rideledger/internal/logging"
	internalRedis "rideledger/internal/redis"
	"rideledger/internal/repository/postgres"
	"rideledger/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Log.Service, cfg.Log.Level)
	slog.SetDefault(logger)

	if cfg.Auth.JWTSecret == "" {
		fatal(logger, "JWT_SECRET must be set", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic first so the database and Redis clients can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", "migrated", cfg.Database.Migrate)

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		fatal(logger, "failed to connect to redis", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	var publisher service.Publisher
	if cfg.RabbitMQ.Enabled {
		p, err := broker.NewPublisher(broker.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange}, logger)
		if err != nil {
			logger.Warn("event publishing disabled, events will only be logged", "error", err)
		} else {
			defer p.Close()
			publisher = p
			logger.Info("connected to RabbitMQ", "exchange", cfg.RabbitMQ.Exchange)
		}
	}

	server, auth := wireServer(db, redisClient, publisher, nrApp, cfg, logger)

	err = auth.EnsureBootstrapAdmin(ctx, service.RegisterRequest{
		Name:     cfg.Auth.AdminName,
		Email:    cfg.Auth.AdminEmail,
		Password: cfg.Auth.AdminPassword,
	})
	if err != nil {
		fatal(logger, "failed to create bootstrap admin", err)
	}

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server error", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}

	logger.Info("server exited")
}

func fatal(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}

// wireServer wires all dependencies and returns the HTTP server and the auth service.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher service.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *slog.Logger,
) (*http.Server, *service.AuthService) {
	// Redis stores.
	cacheStore := internalRedis.NewCacheStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)

	// Repositories.
	store := postgres.NewStore(db)
	userRepo := postgres.NewUserRepository(db)
	adminRepo := postgres.NewAdminRepository(db)

	// Services.
	notificationService := service.NewNotificationService(publisher, logger)
	settingsService := service.NewSettingsService(store.Settings(), store, cacheStore, notificationService, logger)
	ledgerService := service.NewLedgerService(store, store, settingsService, notificationService, logger)
	payoutService := service.NewPayoutService(store.Payments(), lockStore, notificationService, logger)
	rideService := service.NewRideService(store, store, settingsService, ledgerService, notificationService, logger)
	driverService := service.NewDriverService(store.Drivers(), cacheStore, notificationService, logger)
	authService := service.NewAuthService(userRepo, store.Drivers(), adminRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
	analyticsService := service.NewAnalyticsService(store)

	router := app.NewRouter(app.RouterDeps{
		UserHandler:     handler.NewUserHandler(authService),
		DriverHandler:   handler.NewDriverHandler(driverService, authService),
		AdminHandler:    handler.NewAdminHandler(authService, analyticsService),
		RideHandler:     handler.NewRideHandler(rideService),
		PaymentHandler:  handler.NewPaymentHandler(ledgerService, payoutService),
		SettingsHandler: handler.NewSettingsHandler(settingsService),
		Tokens:          authService,
		Drivers:         driverService,
		Responses:       idempotencyStore,
		WebhookSecret:   cfg.Auth.WebhookSecret,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Logger:          logger,
		NewRelicApp:     nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, authService
}
