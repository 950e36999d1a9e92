package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/dispatcher"
	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/application/service"
	"github.com/garyjia/order-resolution/internal/infrastructure/cache"
	"github.com/garyjia/order-resolution/internal/infrastructure/export"
	"github.com/garyjia/order-resolution/internal/infrastructure/messaging"
	"github.com/garyjia/order-resolution/internal/infrastructure/metrics"
	"github.com/garyjia/order-resolution/internal/infrastructure/notify"
	"github.com/garyjia/order-resolution/internal/infrastructure/persistence/repository"
	"github.com/garyjia/order-resolution/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/order-resolution/internal/infrastructure/storage"
	"github.com/garyjia/order-resolution/internal/infrastructure/worker"
	"github.com/garyjia/order-resolution/migrations"
	"github.com/garyjia/order-resolution/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.TxManager
}

// StorageBundle holds file-backed stores.
type StorageBundle struct {
	Fallback *storage.FallbackFile
	Reports  *storage.ReportStore
}

// TransportBundle holds the optional Kafka and Redis clients.
type TransportBundle struct {
	Publisher *messaging.EventPublisher
	Consumer  *messaging.RefundDecisionConsumer
	Redis     *redis.Client
}

// ProvideDatabase opens the SQLite database and applies the embedded
// migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrationsFS(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Refund:        repository.NewRefundRepository(sqlDB, logger),
		RefundLedger:  repository.NewRefundLedgerRepository(sqlDB, logger),
		Order:         repository.NewOrderRepository(sqlDB, logger),
		Shipment:      repository.NewShipmentRepository(sqlDB, logger),
		ShipmentIssue: repository.NewShipmentIssueRepository(sqlDB, logger),
		SellerExpense: repository.NewSellerExpenseRepository(sqlDB, logger),
		ShipmentItem:  repository.NewShipmentItemRepository(sqlDB, logger),
		ShipmentEvent: repository.NewShipmentEventRepository(sqlDB, logger),
		Incident:      repository.NewIncidentRepository(sqlDB, logger),
		Reimbursement: repository.NewReimbursementRepository(sqlDB, logger),
		Payroll:       repository.NewPayrollRepository(sqlDB, logger),
		Outbox:        repository.NewOutboxRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the fallback file and the report directory store.
func ProvideStorage(cfg *Config, logger *zap.Logger) *StorageBundle {
	return &StorageBundle{
		Fallback: storage.NewFallbackFile(cfg.FallbackPath, logger),
		Reports:  storage.NewReportStore(cfg.ExportsDir, logger),
	}
}

// ProvideDispatcher creates the event dispatcher. Handler outcomes are
// counted by rec.
func ProvideDispatcher(rec *metrics.Recorder, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
		dispatcher.WithObserver(rec.HandlerObserved),
	)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos          *RepositoryBundle
	TxManager      port.TransactionManager
	Dispatcher     dispatcher.Dispatcher
	Recorder       *metrics.Recorder
	PTOHoursPerDay float64
	Logger         *zap.Logger
}

// ProvideServices creates all application services and routes refund
// decision events to the refund service.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	opts := []service.Option{
		service.WithRecorder(deps.Recorder),
		service.WithEventBus(deps.Dispatcher),
	}
	r := deps.Repos

	notifications := service.NewNotificationService(r.Outbox, deps.TxManager, logger, opts...)
	bundle := &ServiceBundle{
		Notification: notifications,
		Refund: service.NewRefundService(
			r.Refund, r.RefundLedger, r.Order, notifications, deps.TxManager, logger, opts...),
		ShipmentIssue: service.NewShipmentIssueService(
			r.ShipmentIssue, r.Shipment, r.SellerExpense, notifications, deps.TxManager, logger, opts...),
		Shipment: service.NewShipmentService(
			r.ShipmentItem, r.ShipmentEvent, deps.TxManager, logger, opts...),
		Finance: service.NewFinanceService(
			r.Incident, r.Reimbursement, r.Payroll, deps.TxManager, logger, deps.PTOHoursPerDay, opts...),
	}

	dispatcher.RegisterRefundHandlers(deps.Dispatcher, bundle.Refund)
	return bundle, nil
}

// ProvideSender selects SMTP delivery when a host is configured and the log
// sender otherwise.
func ProvideSender(cfg *notify.SMTPConfig, logger *zap.Logger) (port.NotificationSender, error) {
	renderer, err := notify.NewRenderer(notify.Templates...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}
	if cfg.Host == "" {
		logger.Info("SMTP host not set, notifications will be logged")
		return notify.NewLogSender(renderer, logger), nil
	}
	return notify.NewEmailSender(*cfg, renderer, logger), nil
}

// TransportDeps holds dependencies for Kafka and Redis.
type TransportDeps struct {
	Kafka      *KafkaConfig
	Redis      *cache.RedisConfig
	Config     *Config
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideTransports connects the optional event transports. Shipment status
// events are forwarded to Kafka and refund decisions are consumed from it.
func ProvideTransports(ctx context.Context, deps *TransportDeps) (*TransportBundle, error) {
	bundle := &TransportBundle{}

	var dedup port.EventDeduplicator
	if deps.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, *deps.Redis)
		if err != nil {
			return nil, err
		}
		bundle.Redis = client
		dedup = cache.NewRedisDeduplicator(client, "resolution:event:", deps.Config.DedupTTL, deps.Logger)
	}

	kc := messaging.NewClient(deps.Kafka.Brokers)
	if !kc.Enabled() {
		deps.Logger.Info("Kafka brokers not set, event transport disabled")
		return bundle, nil
	}

	bundle.Publisher = messaging.NewEventPublisher(kc.NewWriter(deps.Kafka.ShipmentTopic), deps.Logger.Named("publisher"))
	messaging.ForwardShipmentEvents(deps.Dispatcher, bundle.Publisher)

	bundle.Consumer = messaging.NewRefundDecisionConsumer(
		kc.NewReader(deps.Kafka.RefundTopic, deps.Kafka.GroupID),
		deps.Dispatcher,
		dedup,
		deps.Logger.Named("consumer"),
	)
	return bundle, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Outbox   port.OutboxRepository
	Sender   port.NotificationSender
	Fallback port.FallbackStore
	Consumer *messaging.RefundDecisionConsumer
	Recorder *metrics.Recorder
	Config   *worker.OutboxConfig
	Logger   *zap.Logger
}

// ProvideWorkers creates the worker manager with the outbox worker and, when
// Kafka is enabled, the refund decision consumer.
func ProvideWorkers(deps *WorkerDeps) *worker.Manager {
	m := worker.NewManager(deps.Logger)
	m.Register(worker.NewOutboxWorker(
		deps.Outbox,
		deps.Sender,
		deps.Fallback,
		*deps.Config,
		deps.Logger.Named("outbox"),
		deps.Recorder.NotificationDelivered,
	))
	if deps.Consumer != nil {
		m.Register(deps.Consumer)
	}
	return m
}

// ProvideLedgerExporter creates the spreadsheet exporter.
func ProvideLedgerExporter(repos *RepositoryBundle, logger *zap.Logger) *export.LedgerExporter {
	return export.NewLedgerExporter(repos.RefundLedger, repos.SellerExpense, logger)
}
