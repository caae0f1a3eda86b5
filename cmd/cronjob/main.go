package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"khazna-backend/internal/config"
	"khazna-backend/internal/jobs"
	"khazna-backend/internal/logger"
	"khazna-backend/internal/notify"
	"khazna-backend/internal/repository/postgres"
	"khazna-backend/internal/scheduler"
	"khazna-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'expire-stale-operations', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Khazna Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	// Initialize Services
	operationSvc := service.NewOperationService(store, nil, service.OperationConfig{
		CompletionWindow: cfg.CompletionWindow(),
		Location:         cfg.Location(),
		Retry:            service.RetryPolicy{MaxRetries: cfg.Ledger.MaxRetries, Backoff: cfg.RetryBackoff()},
	})

	var publisher notify.Publisher = notify.NewInboxPublisher(store)
	if cfg.Notifications.Sink == "pubsub" {
		pub := notify.NewPubSubPublisher(notify.PubSubConfig{
			ProjectID:       cfg.Notifications.PubSubProjectID,
			Topic:           cfg.Notifications.PubSubTopic,
			CredentialsFile: cfg.Notifications.PubSubCredentialsFile,
		})
		defer pub.Close()
		publisher = pub
	}
	dispatcher := notify.NewDispatcher(store, publisher, notify.DispatcherConfig{
		BatchSize:      cfg.Notifications.BatchSize,
		LockTimeout:    time.Duration(cfg.Notifications.LockTimeoutSeconds) * time.Second,
		MaxAttempts:    cfg.Notifications.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Notifications.InitialBackoffSecs) * time.Second,
	})

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(&jobs.Services{Operations: operationSvc, Outbox: dispatcher}, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to initialize scheduler", "error", err)
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "expire-stale-operations":
		jobRunner.ExpireStalePendingOperations()
	case "release-orphaned-car-locks":
		jobRunner.ReleaseOrphanedCarLocks()
	case "dispatch-notifications":
		jobRunner.DispatchNotifications()
	case "purge-sent-notifications":
		jobRunner.PurgeSentNotifications()
	case "all":
		jobRunner.RunMaintenanceJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-stale-operations\n")
		fmt.Printf("  - release-orphaned-car-locks\n")
		fmt.Printf("  - dispatch-notifications\n")
		fmt.Printf("  - purge-sent-notifications\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
