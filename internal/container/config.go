// Package container wires repositories, services, transports and workers
// for the order resolution service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/order-resolution/internal/infrastructure/cache"
	"github.com/garyjia/order-resolution/internal/infrastructure/notify"
	"github.com/garyjia/order-resolution/internal/infrastructure/worker"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig

	// SMTP delivery. An empty Host selects the log sender.
	SMTP notify.SMTPConfig

	// FallbackPath is the JSON lines file for undeliverable notifications
	FallbackPath string

	Outbox worker.OutboxConfig

	Kafka KafkaConfig

	// Redis is optional; without an address consumed events are not deduplicated
	Redis    cache.RedisConfig
	DedupTTL time.Duration

	PTOHoursPerDay float64
	ExportsDir     string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig holds event transport settings. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers       string
	RefundTopic   string
	ShipmentTopic string
	GroupID       string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/resolution.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SMTP: notify.SMTPConfig{
			Port:      587,
			From:      "no-reply@example.com",
			TLSPolicy: "opportunistic",
			Timeout:   15 * time.Second,
		},
		FallbackPath: "data/notification_fallback.jsonl",
		Outbox: worker.OutboxConfig{
			PollInterval:    5 * time.Second,
			BatchSize:       50,
			MaxAttempts:     5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
		},
		Kafka: KafkaConfig{
			RefundTopic:   "refund-decisions",
			ShipmentTopic: "shipment-status",
			GroupID:       "order-resolution",
		},
		DedupTTL:       24 * time.Hour,
		PTOHoursPerDay: 8,
		ExportsDir:     "exports",
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.FallbackPath == "" {
		return fmt.Errorf("notification.fallback_path is required")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("notification.from is required")
	}
	if c.PTOHoursPerDay <= 0 {
		return fmt.Errorf("finance.pto_hours_per_day must be positive")
	}
	if c.Kafka.Brokers != "" && (c.Kafka.RefundTopic == "" || c.Kafka.ShipmentTopic == "") {
		return fmt.Errorf("kafka topics are required when brokers are set")
	}
	return nil
}
