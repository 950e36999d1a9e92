package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/order-resolution/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Notification NotificationConfig `mapstructure:"notification"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Finance      FinanceConfig      `mapstructure:"finance"`
	ExportsDir   string             `mapstructure:"exports_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// NotificationConfig holds outbox delivery configuration
type NotificationConfig struct {
	From         string       `mapstructure:"from"`
	FallbackPath string       `mapstructure:"fallback_path"`
	SMTP         SMTPConfig   `mapstructure:"smtp"`
	Worker       WorkerConfig `mapstructure:"worker"`
}

// SMTPConfig holds mail server settings. An empty host logs notifications instead of sending them.
type SMTPConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	TLSPolicy string        `mapstructure:"tls_policy"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// WorkerConfig holds outbox worker settings
type WorkerConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// KafkaConfig holds event transport settings
type KafkaConfig struct {
	Brokers       string `mapstructure:"brokers"`
	RefundTopic   string `mapstructure:"refund_topic"`
	ShipmentTopic string `mapstructure:"shipment_topic"`
	GroupID       string `mapstructure:"group_id"`
}

// RedisConfig holds event de-duplication settings
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// FinanceConfig holds payroll settings
type FinanceConfig struct {
	PTOHoursPerDay float64 `mapstructure:"pto_hours_per_day"`
}

// Load reads .env, then the YAML file at configPath, then the environment.
// An empty configPath uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "data/resolution.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("notification.from", "no-reply@example.com")
	v.SetDefault("notification.fallback_path", "data/notification_fallback.jsonl")
	v.SetDefault("notification.smtp.host", "")
	v.SetDefault("notification.smtp.port", 587)
	v.SetDefault("notification.smtp.username", "")
	v.SetDefault("notification.smtp.password", "")
	v.SetDefault("notification.smtp.tls_policy", "opportunistic")
	v.SetDefault("notification.smtp.timeout", 15*time.Second)
	v.SetDefault("notification.worker.poll_interval", 5*time.Second)
	v.SetDefault("notification.worker.batch_size", 50)
	v.SetDefault("notification.worker.max_attempts", 5)
	v.SetDefault("notification.worker.initial_interval", 500*time.Millisecond)
	v.SetDefault("notification.worker.max_interval", 30*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.refund_topic", "refund-decisions")
	v.SetDefault("kafka.shipment_topic", "shipment-status")
	v.SetDefault("kafka.group_id", "order-resolution")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dedup_ttl", 24*time.Hour)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("finance.pto_hours_per_day", 8.0)

	v.SetDefault("exports_dir", "exports")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
	_ = v.BindEnv("notification.from", "NOTIFICATION_FROM")
	_ = v.BindEnv("notification.smtp.host", "SMTP_HOST")
	_ = v.BindEnv("notification.smtp.port", "SMTP_PORT")
	_ = v.BindEnv("notification.smtp.username", "SMTP_USERNAME")
	_ = v.BindEnv("notification.smtp.password", "SMTP_PASSWORD")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := utils.ValidateEmail(c.Notification.From); err != nil {
		return fmt.Errorf("notification.from: %w", err)
	}
	if c.Notification.FallbackPath == "" {
		return fmt.Errorf("notification.fallback_path is required")
	}
	switch c.Notification.SMTP.TLSPolicy {
	case "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("notification.smtp.tls_policy must be mandatory, opportunistic or none")
	}
	if c.Notification.Worker.MaxAttempts < 1 {
		return fmt.Errorf("notification.worker.max_attempts must be at least 1")
	}
	if c.Finance.PTOHoursPerDay <= 0 {
		return fmt.Errorf("finance.pto_hours_per_day must be positive")
	}
	return nil
}
