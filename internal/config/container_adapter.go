package config

import (
	"github.com/garyjia/order-resolution/internal/container"
	"github.com/garyjia/order-resolution/internal/infrastructure/cache"
	"github.com/garyjia/order-resolution/internal/infrastructure/notify"
	"github.com/garyjia/order-resolution/internal/infrastructure/worker"
)

// ToContainerConfig converts the viper-loaded Config into the container's
// configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		SMTP: notify.SMTPConfig{
			Host:      c.Notification.SMTP.Host,
			Port:      c.Notification.SMTP.Port,
			Username:  c.Notification.SMTP.Username,
			Password:  c.Notification.SMTP.Password,
			From:      c.Notification.From,
			TLSPolicy: c.Notification.SMTP.TLSPolicy,
			Timeout:   c.Notification.SMTP.Timeout,
		},
		FallbackPath: c.Notification.FallbackPath,
		Outbox: worker.OutboxConfig{
			PollInterval:    c.Notification.Worker.PollInterval,
			BatchSize:       c.Notification.Worker.BatchSize,
			MaxAttempts:     c.Notification.Worker.MaxAttempts,
			InitialInterval: c.Notification.Worker.InitialInterval,
			MaxInterval:     c.Notification.Worker.MaxInterval,
		},
		Kafka: container.KafkaConfig{
			Brokers:       c.Kafka.Brokers,
			RefundTopic:   c.Kafka.RefundTopic,
			ShipmentTopic: c.Kafka.ShipmentTopic,
			GroupID:       c.Kafka.GroupID,
		},
		Redis: cache.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		},
		DedupTTL:       c.Redis.DedupTTL,
		PTOHoursPerDay: c.Finance.PTOHoursPerDay,
		ExportsDir:     c.ExportsDir,
	}
}
