package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "khazna-backend/internal/api/http"
	"khazna-backend/internal/config"
	"khazna-backend/internal/jobs"
	"khazna-backend/internal/lock"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/notify"
	"khazna-backend/internal/repository/postgres"
	"khazna-backend/internal/scheduler"
	"khazna-backend/internal/security"
	"khazna-backend/internal/service"
	"khazna-backend/internal/storage"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Khazna Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)
	retry := service.RetryPolicy{MaxRetries: cfg.Ledger.MaxRetries, Backoff: cfg.RetryBackoff()}

	// Distributed car lock, only when Redis is configured
	var carLocker service.CarLocker
	if cfg.Redis.Address != "" {
		redisLocker := lock.NewRedisCarLocker(lock.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.LockTTL) * time.Second,
		})
		if err := redisLocker.Ping(context.Background()); err != nil {
			logger.Error("Failed to ping redis", "error", err, "address", cfg.Redis.Address)
			log.Fatalf("Failed to ping redis: %v", err)
		}
		defer redisLocker.Close()
		carLocker = redisLocker
		logger.Info("Distributed car lock enabled", "address", cfg.Redis.Address)
	}

	// Initialize Storage
	if cfg.Storage.Type != "local" {
		logger.Error("Unsupported storage type", "type", cfg.Storage.Type)
		log.Fatalf("Storage type '%s' not yet implemented", cfg.Storage.Type)
	}
	files, err := storage.NewLocalStorage(cfg.Storage.BaseURL, cfg.Storage.UploadDir, cfg.Storage.MaxFileSize<<20)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	logger.Info("Using local storage", "upload_dir", cfg.Storage.UploadDir)

	// Initialize Services
	transferSvc := service.NewTransferService(store, retry)
	ledgerSvc := service.NewLedgerService(store, retry)
	operationSvc := service.NewOperationService(store, carLocker, service.OperationConfig{
		CompletionWindow: cfg.CompletionWindow(),
		Location:         cfg.Location(),
		Retry:            retry,
	})
	notificationSvc := service.NewNotificationService(store)

	// Notification dispatcher
	publisher, closePublisher := newPublisher(cfg, store)
	defer closePublisher()
	dispatcher := notify.NewDispatcher(store, publisher, notify.DispatcherConfig{
		BatchSize:      cfg.Notifications.BatchSize,
		PollInterval:   time.Duration(cfg.Notifications.PollIntervalMS) * time.Millisecond,
		LockTimeout:    time.Duration(cfg.Notifications.LockTimeoutSeconds) * time.Second,
		MaxAttempts:    cfg.Notifications.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Notifications.InitialBackoffSecs) * time.Second,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(ctx)
	}()

	// Maintenance jobs
	jobRunner := jobs.NewJobRunner(&jobs.Services{Operations: operationSvc, Outbox: dispatcher}, cfg)
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to initialize scheduler", "error", err)
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}
	cronScheduler.Start()

	// HTTP API
	tokenManager := security.NewTokenManager(cfg.JWT.Secret)
	router := httpapi.NewRouter(httpapi.NewAuthMiddleware(tokenManager, store), httpapi.Handlers{
		Ledger:        httpapi.NewLedgerHandler(transferSvc, ledgerSvc),
		Operations:    httpapi.NewOperationHandler(operationSvc, files),
		Files:         httpapi.NewFileHandler(operationSvc, files),
		Notifications: httpapi.NewNotificationHandler(notificationSvc),
	})
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	cronScheduler.Stop()
	<-dispatchDone
	logger.Info("Khazna Backend stopped. Goodbye!")
}

// newPublisher picks the outbox sink from config.
func newPublisher(cfg *config.Config, store *postgres.Store) (notify.Publisher, func()) {
	if cfg.Notifications.Sink != "pubsub" {
		logger.Info("Notifications delivered to in-app inbox")
		return notify.NewInboxPublisher(store), func() {}
	}

	logger.Info("Notifications published to Pub/Sub",
		"project", cfg.Notifications.PubSubProjectID,
		"topic", cfg.Notifications.PubSubTopic)
	pub := notify.NewPubSubPublisher(notify.PubSubConfig{
		ProjectID:       cfg.Notifications.PubSubProjectID,
		Topic:           cfg.Notifications.PubSubTopic,
		CredentialsFile: cfg.Notifications.PubSubCredentialsFile,
	})
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("Failed to close Pub/Sub publisher", "error", err)
		}
	}
}
