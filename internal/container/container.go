package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/dispatcher"
	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/application/service"
	"github.com/garyjia/order-resolution/internal/infrastructure/export"
	"github.com/garyjia/order-resolution/internal/infrastructure/metrics"
	"github.com/garyjia/order-resolution/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/order-resolution/internal/infrastructure/storage"
	"github.com/garyjia/order-resolution/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Data
	sqlDB        *sql.DB
	db           *sqlite.TxManager
	repositories *RepositoryBundle
	storage      *StorageBundle

	// Application
	metrics    *metrics.Recorder
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	exporter   *export.LedgerExporter

	// Background
	transports *TransportBundle
	workers    *worker.Manager

	mu     sync.Mutex
	opened atomic.Bool
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Refund        port.RefundRepository
	RefundLedger  port.RefundLedgerRepository
	Order         port.OrderRepository
	Shipment      port.ShipmentRepository
	ShipmentIssue port.ShipmentIssueRepository
	SellerExpense port.SellerExpenseRepository
	ShipmentItem  port.ShipmentItemRepository
	ShipmentEvent port.ShipmentEventRepository
	Incident      port.IncidentRepository
	Reimbursement port.ReimbursementRepository
	Payroll       port.PayrollRepository
	Outbox        port.OutboxRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Refund        service.RefundService
	ShipmentIssue service.ShipmentIssueService
	Shipment      service.ShipmentService
	Finance       service.FinanceService
	Notification  service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Open or Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}, nil
}

// Open initializes the database, storage and services without starting any
// background work. Command line tools stop here.
func (c *Container) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open()
}

func (c *Container) open() error {
	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.opened.Load() {
		return nil
	}

	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.sqlDB.Close()
		return err
	}
	c.repositories = repos
	c.storage = ProvideStorage(c.config, c.logger)
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	c.dispatcher = ProvideDispatcher(c.metrics, c.logger)
	services, err := ProvideServices(&ServiceDeps{
		Repos:          c.repositories,
		TxManager:      c.db,
		Dispatcher:     c.dispatcher,
		Recorder:       c.metrics,
		PTOHoursPerDay: c.config.PTOHoursPerDay,
		Logger:         c.logger,
	})
	if err != nil {
		c.sqlDB.Close()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.exporter = ProvideLedgerExporter(c.repositories, c.logger)
	c.logger.Info("Application services initialized")

	c.opened.Store(true)
	return nil
}

// Start opens the container, connects Kafka and Redis when configured and
// starts the background workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}
	if err := c.open(); err != nil {
		return err
	}

	transports, err := ProvideTransports(ctx, &TransportDeps{
		Kafka:      &c.config.Kafka,
		Redis:      &c.config.Redis,
		Config:     c.config,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize transports: %w", err)
	}
	c.transports = transports

	sender, err := ProvideSender(&c.config.SMTP, c.logger)
	if err != nil {
		return err
	}

	c.workers = ProvideWorkers(&WorkerDeps{
		Outbox:   c.repositories.Outbox,
		Sender:   sender,
		Fallback: c.storage.Fallback,
		Consumer: transports.Consumer,
		Recorder: c.metrics,
		Config:   &c.config.Outbox,
		Logger:   c.logger,
	})
	if err := c.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.transports != nil {
		if c.transports.Publisher != nil {
			if err := c.transports.Publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close publisher: %w", err))
			}
		}
		if c.transports.Redis != nil {
			if err := c.transports.Redis.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close redis: %w", err))
			}
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		for _, err := range errs {
			c.logger.Error("Shutdown step failed", zap.Error(err))
		}
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true once Start has completed.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB == nil:
		set("database", false, "not initialized")
	default:
		if err := c.sqlDB.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.Running(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	}

	set("dispatcher", c.dispatcher != nil, "")
	return status
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Metrics returns the Prometheus recorder.
func (c *Container) Metrics() *metrics.Recorder {
	return c.metrics
}

// Fallback returns the store of undeliverable notifications.
func (c *Container) Fallback() *storage.FallbackFile {
	return c.storage.Fallback
}

// Reports returns the export directory store.
func (c *Container) Reports() *storage.ReportStore {
	return c.storage.Reports
}

// LedgerExporter returns the spreadsheet exporter.
func (c *Container) LedgerExporter() *export.LedgerExporter {
	return c.exporter
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service and dispatcher Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
