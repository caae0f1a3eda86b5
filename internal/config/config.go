package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // business timezone must resolve on minimal images

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	JWT           JWTConfig           `yaml:"jwt"`
	Storage       StorageConfig       `yaml:"storage"`
	Log           LogConfig           `yaml:"log"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Operations    OperationsConfig    `yaml:"operations"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig enables the distributed per-car lock. Empty address disables it.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	LockTTL  int    `yaml:"lock_ttl_seconds"`
}

// JWTConfig contains the secret used to verify access tokens
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// StorageConfig contains operation photo storage settings
type StorageConfig struct {
	Type        string `yaml:"type"` // "local"
	UploadDir   string `yaml:"upload_dir"`
	BaseURL     string `yaml:"base_url"`
	MaxFileSize int64  `yaml:"max_file_size_mb"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// LedgerConfig bounds the retry of a unit of work that lost a balance race.
type LedgerConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	RetryBackoffMS int `yaml:"retry_backoff_ms"`
}

// OperationsConfig holds car operation policy knobs.
type OperationsConfig struct {
	CompletionWindowSeconds int    `yaml:"completion_window_seconds"`
	StalePendingMinutes     int    `yaml:"stale_pending_minutes"`
	Timezone                string `yaml:"timezone"`
}

// NotificationsConfig selects where outbox rows are published and how the
// dispatcher polls.
type NotificationsConfig struct {
	Sink                  string `yaml:"sink"` // "inbox" or "pubsub"
	PubSubProjectID       string `yaml:"pubsub_project_id"`
	PubSubTopic           string `yaml:"pubsub_topic"`
	PubSubCredentialsFile string `yaml:"pubsub_credentials_file"`
	BatchSize             int    `yaml:"batch_size"`
	PollIntervalMS        int    `yaml:"poll_interval_ms"`
	LockTimeoutSeconds    int    `yaml:"lock_timeout_seconds"`
	MaxAttempts           int    `yaml:"max_attempts"`
	InitialBackoffSecs    int    `yaml:"initial_backoff_seconds"`
	RetentionDays         int    `yaml:"retention_days"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReleaseOrphanedCarLocks      string `yaml:"release_orphaned_car_locks"`
	ExpireStalePendingOperations string `yaml:"expire_stale_pending_operations"`
	DispatchNotifications        string `yaml:"dispatch_notifications"`
	PurgeSentNotifications       string `yaml:"purge_sent_notifications"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDRESS"); val != "" {
		c.Redis.Address = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Storage
	if val := os.Getenv("UPLOAD_DIR"); val != "" {
		c.Storage.UploadDir = val
	}

	// Notifications
	if val := os.Getenv("NOTIFICATION_SINK"); val != "" {
		c.Notifications.Sink = val
	}
	if val := os.Getenv("PUBSUB_PROJECT_ID"); val != "" {
		c.Notifications.PubSubProjectID = val
	}
	if val := os.Getenv("PUBSUB_TOPIC"); val != "" {
		c.Notifications.PubSubTopic = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("upload directory is required")
	}
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = 10
	}

	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 15
	}

	// Ledger defaults
	if c.Ledger.MaxRetries == 0 {
		c.Ledger.MaxRetries = 3
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger max_retries must not be negative")
	}
	if c.Ledger.RetryBackoffMS == 0 {
		c.Ledger.RetryBackoffMS = 25
	}

	// Operations defaults
	if c.Operations.CompletionWindowSeconds == 0 {
		c.Operations.CompletionWindowSeconds = 70
	}
	if c.Operations.StalePendingMinutes == 0 {
		c.Operations.StalePendingMinutes = 30
	}
	if c.Operations.Timezone == "" {
		c.Operations.Timezone = "Africa/Cairo"
	}
	if _, err := time.LoadLocation(c.Operations.Timezone); err != nil {
		return fmt.Errorf("invalid operations timezone %q: %w", c.Operations.Timezone, err)
	}

	// Notification defaults
	switch c.Notifications.Sink {
	case "":
		c.Notifications.Sink = "inbox"
	case "inbox":
	case "pubsub":
		if c.Notifications.PubSubProjectID == "" || c.Notifications.PubSubTopic == "" {
			return fmt.Errorf("pubsub sink requires pubsub_project_id and pubsub_topic")
		}
	default:
		return fmt.Errorf("unknown notification sink %q", c.Notifications.Sink)
	}
	if c.Notifications.BatchSize == 0 {
		c.Notifications.BatchSize = 50
	}
	if c.Notifications.PollIntervalMS == 0 {
		c.Notifications.PollIntervalMS = 500
	}
	if c.Notifications.LockTimeoutSeconds == 0 {
		c.Notifications.LockTimeoutSeconds = 30
	}
	if c.Notifications.MaxAttempts == 0 {
		c.Notifications.MaxAttempts = 20
	}
	if c.Notifications.InitialBackoffSecs == 0 {
		c.Notifications.InitialBackoffSecs = 5
	}
	if c.Notifications.RetentionDays == 0 {
		c.Notifications.RetentionDays = 30
	}

	// Scheduler defaults
	if c.Scheduler.ReleaseOrphanedCarLocks == "" {
		c.Scheduler.ReleaseOrphanedCarLocks = "0 */10 * * * *" // every 10 minutes
	}
	if c.Scheduler.ExpireStalePendingOperations == "" {
		c.Scheduler.ExpireStalePendingOperations = "0 */5 * * * *" // every 5 minutes
	}
	if c.Scheduler.DispatchNotifications == "" {
		c.Scheduler.DispatchNotifications = "*/30 * * * * *" // every 30 seconds
	}
	if c.Scheduler.PurgeSentNotifications == "" {
		c.Scheduler.PurgeSentNotifications = "0 0 3 * * *" // 3 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) CompletionWindow() time.Duration {
	return time.Duration(c.Operations.CompletionWindowSeconds) * time.Second
}

func (c *Config) StalePendingAge() time.Duration {
	return time.Duration(c.Operations.StalePendingMinutes) * time.Minute
}

// Location is the business timezone used for weekday and daily-limit checks.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Operations.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Ledger.RetryBackoffMS) * time.Millisecond
}
