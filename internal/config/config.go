package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	Log          LogConfig          `yaml:"log"`
	Escrow       EscrowConfig       `yaml:"escrow"`
	Payments     PaymentsConfig     `yaml:"payments"`
	Notification NotificationConfig `yaml:"notification"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC health listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // "postgres" or "memory"
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	SSLMode    string `yaml:"ssl_mode"`
	MaxRetries int    `yaml:"max_retries"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// StorageConfig contains evidence file storage settings
type StorageConfig struct {
	Type         string   `yaml:"type"`       // "local"
	UploadDir    string   `yaml:"upload_dir"` // For local storage
	BaseURL      string   `yaml:"base_url"`   // Server base URL for upload/download URLs
	MaxFileSize  int64    `yaml:"max_file_size_mb"`
	AllowedTypes []string `yaml:"allowed_types"`
}

// RedisConfig contains the profile cache settings; empty Addr disables the cache
type RedisConfig struct {
	Addr              string `yaml:"addr"`
	Password          string `yaml:"password"`
	DB                int    `yaml:"db"`
	ProfileTTLSeconds int    `yaml:"profile_ttl_seconds"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// EscrowConfig contains rental money rules and time windows
type EscrowConfig struct {
	CommissionRate      float64 `yaml:"commission_rate"`
	NoShowPenaltyRate   float64 `yaml:"no_show_penalty_rate"`
	NoShowMinPrice      int64   `yaml:"no_show_min_price"`
	BufferDays          int     `yaml:"buffer_days"`
	ReturnGraceDays     int     `yaml:"return_grace_days"`
	PickupLeadHours     int     `yaml:"pickup_lead_hours"`
	ReturnLeadHours     int     `yaml:"return_lead_hours"`
	RequireHandoffToken *bool   `yaml:"require_handoff_token"`
	SweepBatchSize      int     `yaml:"sweep_batch_size"`
}

// PaymentsConfig contains top-up and withdrawal expiry windows
type PaymentsConfig struct {
	StripeTopUpExpiryMinutes      int `yaml:"stripe_topup_expiry_minutes"`
	BillPayTopUpExpiryHours       int `yaml:"billpay_topup_expiry_hours"`
	BankWithdrawalExpiryHours     int `yaml:"bank_withdrawal_expiry_hours"`
	ExchangeWithdrawalExpiryHours int `yaml:"exchange_withdrawal_expiry_hours"`
}

// NotificationConfig contains the async dispatcher and sender backends
type NotificationConfig struct {
	Workers   int            `yaml:"workers"`
	QueueSize int            `yaml:"queue_size"`
	FCM       FCMConfig      `yaml:"fcm"`
	SendGrid  SendGridConfig `yaml:"sendgrid"`
	AMQP      AMQPConfig     `yaml:"amqp"`
}

type FCMConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
}

type SendGridConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type AMQPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// SchedulerConfig contains cron schedule settings (six fields, seconds first)
type SchedulerConfig struct {
	ExpirePendingRentals    string `yaml:"expire_pending_rentals"`
	CancelNoShowRentals     string `yaml:"cancel_no_show_rentals"`
	SettleUnreturnedRentals string `yaml:"settle_unreturned_rentals"`
	ExpireTopUps            string `yaml:"expire_top_ups"`
	ExpireWithdrawals       string `yaml:"expire_withdrawals"`
}

const defaultSweepSpec = "0 */5 * * * *" // every 5 minutes

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a validated configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
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

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Notification backends
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Notification.SendGrid.APIKey = val
	}
	if val := os.Getenv("AMQP_URL"); val != "" {
		c.Notification.AMQP.URL = val
	}
	if val := os.Getenv("FCM_CREDENTIALS_FILE"); val != "" {
		c.Notification.FCM.CredentialsFile = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = c.Server.Port + 1
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.MaxRetries <= 0 {
		c.Database.MaxRetries = 5
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Storage validation
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("upload directory is required")
	}
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = 10
	}
	if len(c.Storage.AllowedTypes) == 0 {
		c.Storage.AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "video/mp4"}
	}

	if c.Redis.ProfileTTLSeconds == 0 {
		c.Redis.ProfileTTLSeconds = 300
	}

	// Escrow defaults
	if c.Escrow.CommissionRate < 0 || c.Escrow.CommissionRate >= 1 {
		return fmt.Errorf("commission rate must be in [0, 1): %v", c.Escrow.CommissionRate)
	}
	if c.Escrow.CommissionRate == 0 {
		c.Escrow.CommissionRate = 0.07
	}
	if c.Escrow.NoShowPenaltyRate < 0 || c.Escrow.NoShowPenaltyRate > 1 {
		return fmt.Errorf("no-show penalty rate must be in [0, 1]: %v", c.Escrow.NoShowPenaltyRate)
	}
	if c.Escrow.NoShowPenaltyRate == 0 {
		c.Escrow.NoShowPenaltyRate = 0.10
	}
	if c.Escrow.NoShowMinPrice == 0 {
		c.Escrow.NoShowMinPrice = 10
	}
	if c.Escrow.BufferDays == 0 {
		c.Escrow.BufferDays = 5
	}
	if c.Escrow.ReturnGraceDays == 0 {
		c.Escrow.ReturnGraceDays = 3
	}
	if c.Escrow.PickupLeadHours == 0 {
		c.Escrow.PickupLeadHours = 24
	}
	if c.Escrow.ReturnLeadHours == 0 {
		c.Escrow.ReturnLeadHours = 24
	}
	if c.Escrow.RequireHandoffToken == nil {
		require := true
		c.Escrow.RequireHandoffToken = &require
	}
	if c.Escrow.SweepBatchSize == 0 {
		c.Escrow.SweepBatchSize = 100
	}

	// Payment expiry defaults
	if c.Payments.StripeTopUpExpiryMinutes == 0 {
		c.Payments.StripeTopUpExpiryMinutes = 15
	}
	if c.Payments.BillPayTopUpExpiryHours == 0 {
		c.Payments.BillPayTopUpExpiryHours = 24
	}
	if c.Payments.BankWithdrawalExpiryHours == 0 {
		c.Payments.BankWithdrawalExpiryHours = 24
	}
	if c.Payments.ExchangeWithdrawalExpiryHours == 0 {
		c.Payments.ExchangeWithdrawalExpiryHours = 48
	}

	// Notification defaults
	if c.Notification.Workers == 0 {
		c.Notification.Workers = 2
	}
	if c.Notification.QueueSize == 0 {
		c.Notification.QueueSize = 256
	}
	if c.Notification.AMQP.Exchange == "" {
		c.Notification.AMQP.Exchange = "rental_events"
	}
	if c.Notification.SendGrid.Enabled && c.Notification.SendGrid.APIKey == "" {
		return fmt.Errorf("sendgrid api key is required when sendgrid is enabled")
	}
	if c.Notification.AMQP.Enabled && c.Notification.AMQP.URL == "" {
		return fmt.Errorf("amqp url is required when amqp is enabled")
	}

	// Scheduler defaults
	if c.Scheduler.ExpirePendingRentals == "" {
		c.Scheduler.ExpirePendingRentals = defaultSweepSpec
	}
	if c.Scheduler.CancelNoShowRentals == "" {
		c.Scheduler.CancelNoShowRentals = defaultSweepSpec
	}
	if c.Scheduler.SettleUnreturnedRentals == "" {
		c.Scheduler.SettleUnreturnedRentals = defaultSweepSpec
	}
	if c.Scheduler.ExpireTopUps == "" {
		c.Scheduler.ExpireTopUps = defaultSweepSpec
	}
	if c.Scheduler.ExpireWithdrawals == "" {
		c.Scheduler.ExpireWithdrawals = defaultSweepSpec
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

// GetServerAddress returns the HTTP API address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health service address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// Windows converts the escrow settings into durations
func (e EscrowConfig) Windows() (buffer, returnGrace, pickupLead, returnLead time.Duration) {
	day := 24 * time.Hour
	return time.Duration(e.BufferDays) * day,
		time.Duration(e.ReturnGraceDays) * day,
		time.Duration(e.PickupLeadHours) * time.Hour,
		time.Duration(e.ReturnLeadHours) * time.Hour
}
