package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string        `split_words:"true" default:"localhost"`
	Port            string        `split_words:"true" default:"5432"`
	User            string        `split_words:"true" default:"postgres"`
	Password        string        `split_words:"true" default:"password"`
	Name            string        `split_words:"true" default:"jobmatch"`
	SSLMode         string        `split_words:"true" default:"disable"`
	MaxIdleConns    int           `split_words:"true" default:"10"`
	MaxOpenConns    int           `split_words:"true" default:"100"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"1h"`
	LogLevel        string        `split_words:"true" default:"warn"`
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GormLogLevel maps the configured level name onto gorm's logger levels.
func (c *DBConfig) GormLogLevel() logger.LogLevel {
	switch c.LogLevel {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `split_words:"true" default:"8080"`
	Env             string        `split_words:"true" default:"development"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	AllowedOrigins  []string      `split_words:"true" default:"*"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string `split_words:"true" default:"defaultsecretkey"`
	ExpirationHours int    `split_words:"true" default:"24"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `split_words:"true" default:"info"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string `split_words:"true" default:"jobmatch"`
}

// StoreConfig selects the persistence backend: "memory" or "postgres".
type StoreConfig struct {
	Driver string `split_words:"true" default:"memory"`
	Seed   bool   `split_words:"true" default:"false"`
}

// BrokerConfig configures the RabbitMQ notification fan-out. An empty URL
// disables publishing.
type BrokerConfig struct {
	URL      string `split_words:"true"`
	Exchange string `split_words:"true" default:"jobmatch.events"`
}

// MatchConfig holds marketplace defaults.
type MatchConfig struct {
	DefaultRadiusKm float64 `split_words:"true" default:"10"`
	QuotaFree       int     `split_words:"true" default:"3"`
	QuotaPro        int     `split_words:"true" default:"20"`
	// QuotaEnterprise of 0 means unlimited.
	QuotaEnterprise int `split_words:"true" default:"0"`
}

// Config holds all configuration
type Config struct {
	ServiceName string        `split_words:"true" default:"jobmatch-service"`
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Store       StoreConfig
	Broker      BrokerConfig
	Match       MatchConfig
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q (want memory or postgres)", c.Store.Driver)
	}
	if c.Match.DefaultRadiusKm <= 0 {
		return fmt.Errorf("MATCH_DEFAULT_RADIUS_KM must be positive, got %v", c.Match.DefaultRadiusKm)
	}
	if c.Match.QuotaFree <= 0 || c.Match.QuotaPro <= 0 {
		return fmt.Errorf("free and pro posting quotas must be positive")
	}
	if c.Match.QuotaEnterprise < 0 {
		return fmt.Errorf("MATCH_QUOTA_ENTERPRISE must not be negative")
	}
	if c.JWT.SigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY must not be empty")
	}
	return nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	fields := []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("server_port", c.Server.Port),
		zap.String("store_driver", c.Store.Driver),
		zap.Bool("broker_enabled", c.Broker.URL != ""),
	}
	if c.Store.Driver == "postgres" {
		fields = append(fields,
			zap.String("db_host", c.DB.Host),
			zap.String("db_port", c.DB.Port),
			zap.String("db_user", c.DB.User),
			zap.String("db_name", c.DB.Name),
		)
	}
	return fields
}
