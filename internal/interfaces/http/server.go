// Package http exposes the resolution services over a JSON API.
// Handlers are thin: they bind, call one service method and map errors.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/service"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
	}
}

// LedgerExporter writes the ledger workbook
type LedgerExporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// Metrics exposes request instrumentation and the scrape handler
type Metrics interface {
	Handler() http.Handler
	GinMiddleware() gin.HandlerFunc
}

// Deps are the collaborators the handlers call. Metrics and Health may be nil.
type Deps struct {
	Refunds   service.RefundService
	Issues    service.ShipmentIssueService
	Shipments service.ShipmentService
	Finance   service.FinanceService
	Exporter  LedgerExporter
	Metrics   Metrics
	Health    func() (bool, interface{})
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Deps
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(corsMiddleware())
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.GinMiddleware())
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.deps.Metrics != nil && s.config.MetricsPath != "" {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.GET("/refunds/:id", h.GetRefund)
		api.GET("/refunds/:id/ledger", h.GetRefundLedger)
		api.GET("/shipment-issues/:id", h.GetShipmentIssue)
		api.GET("/orders/:id/seller-expenses", h.ListSellerExpenses)
		api.GET("/incidents", h.ListIncidents)
		api.GET("/incidents/:id", h.GetIncident)
		api.GET("/incidents/:id/reimbursements", h.ListReimbursements)
		api.GET("/reimbursements/:id", h.GetReimbursement)
		api.GET("/employees/:id/payment", h.CalculatePayment)
		api.GET("/exports/ledger.xlsx", h.ExportLedger)
		api.GET("/exports/payroll.xlsx", h.ExportPayroll)
	}

	write := api.Group("", requireActor())
	{
		write.POST("/refunds", h.OpenRefund)
		write.POST("/refunds/:id/resolve", h.ResolveRefund)
		write.POST("/shipment-issues", h.ReportShipmentIssue)
		write.POST("/shipment-issues/:id/resolve", h.ResolveShipmentIssue)
		write.PATCH("/shipments/:id/items", h.EditShipmentItems)
		write.PATCH("/shipments/:id/events", h.EditShipmentEvents)
		write.POST("/incidents", h.CreateIncident)
		write.PATCH("/incidents/:id", h.UpdateIncident)
		write.DELETE("/incidents/:id", h.DeleteIncident)
		write.POST("/incidents/:id/reimbursements", h.CreateReimbursement)
		write.PATCH("/reimbursements/:id", h.UpdateReimbursement)
		write.DELETE("/reimbursements/:id", h.DeleteReimbursement)
		write.POST("/payroll/mark-addressed", h.MarkAddressed)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+headerActorID+", "+headerActorRole)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
