// Package app wires configuration into the store, the services and the
// notification pipeline shared by the API server and the cronjob runner.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"rently-backend/internal/config"
	"rently-backend/internal/escrow"
	"rently-backend/internal/logger"
	"rently-backend/internal/notify"
	"rently-backend/internal/repository"
	"rently-backend/internal/repository/memory"
	"rently-backend/internal/repository/postgres"
	"rently-backend/internal/service"
	"rently-backend/internal/storage"
	"rently-backend/internal/userdir"
)

// App holds everything built from one configuration.
type App struct {
	Config        *config.Config
	Store         repository.Store
	Ledger        service.LedgerService
	Rentals       service.RentalService
	Issues        service.IssueReportService
	Payments      service.PaymentService
	Users         service.UserService
	Evidence      *storage.LocalStorage
	StorageConfig storage.Config
	Directory     userdir.Directory
	Dispatcher    *notify.Dispatcher

	closers []func()
}

// New opens the store, builds the services and starts the notification
// workers. Close releases everything New acquired.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.StorageConfig = StorageConfig(cfg)
	evidence, err := storage.NewLocalStorage(a.StorageConfig)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize evidence storage: %w", err)
	}
	a.Evidence = evidence

	var dir userdir.Directory = userdir.NewStoreDirectory(store)
	var invalidator service.ProfileInvalidator
	if cached := a.profileCache(ctx, dir); cached != nil {
		dir = cached
		invalidator = cached
	}
	a.Directory = dir

	sender, err := a.senders(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dispatcher = notify.NewDispatcher(sender, cfg.Notification.Workers, cfg.Notification.QueueSize)
	a.Dispatcher.Start(ctx)
	// Registered last so it drains before the senders close.
	a.closers = append(a.closers, a.Dispatcher.Close)

	opts := []service.Option{
		service.WithNotifier(a.Dispatcher),
		service.WithEvidenceChecker(evidence),
	}
	if invalidator != nil {
		opts = append(opts, service.WithProfileInvalidator(invalidator))
	}

	calc := escrow.NewCalculator(cfg.Escrow.CommissionRate, cfg.Escrow.NoShowPenaltyRate, cfg.Escrow.NoShowMinPrice)
	rentalPolicy := RentalPolicy(cfg)
	a.Ledger = service.NewLedgerService(store, opts...)
	a.Rentals = service.NewRentalService(store, calc, rentalPolicy, opts...)
	a.Issues = service.NewIssueReportService(store, calc, rentalPolicy, opts...)
	a.Payments = service.NewPaymentService(store, PaymentPolicy(cfg), opts...)
	a.Users = service.NewUserService(store, opts...)

	if _, err := a.Ledger.EnsureAdminWallet(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure admin wallet: %w", err)
	}
	return a, nil
}

// Close runs the registered closers in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	cfg := a.Config
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using the in-memory store; balances are lost on restart")
		return memory.NewStore(), nil
	}

	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func() { db.Close() })

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return postgres.NewStore(db).WithRetry(cfg.Database.MaxRetries, 20*time.Millisecond), nil
}

// profileCache returns a redis backed directory, or nil when redis is not
// configured or not reachable.
func (a *App) profileCache(ctx context.Context, next userdir.Directory) *userdir.CachedDirectory {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, profile cache disabled", "addr", cfg.Addr, "error", err)
		client.Close()
		return nil
	}
	a.closers = append(a.closers, func() { client.Close() })
	logger.Info("Profile cache enabled", "addr", cfg.Addr, "ttl_seconds", cfg.ProfileTTLSeconds)
	return userdir.NewCachedDirectory(next, client, time.Duration(cfg.ProfileTTLSeconds)*time.Second)
}

func (a *App) senders(ctx context.Context) (notify.Sender, error) {
	cfg := a.Config.Notification
	var senders []notify.Sender

	if cfg.FCM.Enabled {
		fcm, err := notify.NewFCMSender(ctx, cfg.FCM.CredentialsFile, a.Directory)
		if err != nil {
			return nil, err
		}
		senders = append(senders, fcm)
	}
	if cfg.SendGrid.Enabled {
		senders = append(senders, notify.NewEmailSender(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName, a.Directory))
	}
	if cfg.AMQP.Enabled {
		amqpSender, err := notify.NewAMQPSender(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, amqpSender.Close)
		senders = append(senders, amqpSender)
	}

	if len(senders) == 0 {
		logger.Info("No notification backend configured, logging notifications")
		return notify.LogSender{}, nil
	}
	return notify.NewMultiSender(senders...), nil
}

// RentalPolicy converts the escrow settings into rental time windows.
func RentalPolicy(cfg *config.Config) service.RentalPolicy {
	buffer, grace, pickupLead, returnLead := cfg.Escrow.Windows()
	require := true
	if cfg.Escrow.RequireHandoffToken != nil {
		require = *cfg.Escrow.RequireHandoffToken
	}
	return service.RentalPolicy{
		Buffer:              buffer,
		ReturnGrace:         grace,
		PickupLead:          pickupLead,
		ReturnLead:          returnLead,
		RequireHandoffToken: require,
	}
}

func PaymentPolicy(cfg *config.Config) service.PaymentPolicy {
	p := cfg.Payments
	return service.PaymentPolicy{
		StripeTopUpExpiry:        time.Duration(p.StripeTopUpExpiryMinutes) * time.Minute,
		BillPayTopUpExpiry:       time.Duration(p.BillPayTopUpExpiryHours) * time.Hour,
		BankWithdrawalExpiry:     time.Duration(p.BankWithdrawalExpiryHours) * time.Hour,
		ExchangeWithdrawalExpiry: time.Duration(p.ExchangeWithdrawalExpiryHours) * time.Hour,
	}
}

func StorageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Type:         cfg.Storage.Type,
		UploadDir:    cfg.Storage.UploadDir,
		BaseURL:      cfg.Storage.BaseURL,
		MaxFileSize:  cfg.Storage.MaxFileSize * 1024 * 1024,
		AllowedTypes: cfg.Storage.AllowedTypes,
		URLExpiry:    15 * time.Minute,
	}
}
