package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDSN       string        `env:"DATABASE_DSN,required=true"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	RedisURL          string        `env:"REDIS_URL,required=true"`
	RabbitMQURL       string        `env:"RABBITMQ_URL"`
	OrderEventsQueue  string        `env:"ORDER_EVENTS_QUEUE,default=orders.events"`
	ConsumerPrefetch  int           `env:"CONSUMER_PREFETCH,default=8"`
	APIPort           int           `env:"API_PORT,default=8080"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	AuthJWTSecret     string        `env:"AUTH_JWT_SECRET,required=true"`
	AWSRegion         string        `env:"AWS_REGION"`
	MailFrom          string        `env:"MAIL_FROM"`
	DiscAPIURL        string        `env:"DISC_API_URL"`
	DiscAPIKey        string        `env:"DISC_API_KEY"`
	OrderLockTTL      time.Duration `env:"ORDER_LOCK_TTL,default=10s"`
	ParameterCacheTTL time.Duration `env:"PARAMETER_CACHE_TTL,default=5m"`
}

// Load reads configuration from the environment. Values from a .env file in
// the working directory are applied first without overriding the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AuthConfig holds the settings needed to mint API tokens out of band.
type AuthConfig struct {
	AuthJWTSecret string        `env:"AUTH_JWT_SECRET,required=true"`
	AuthTokenTTL  time.Duration `env:"AUTH_TOKEN_TTL,default=24h"`
}

// LoadAuth reads only the token signing settings, so issuing a token does not
// need database or redis configuration.
func LoadAuth() (*AuthConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg AuthConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}
	if cfg.AuthTokenTTL <= 0 {
		return nil, fmt.Errorf("invalid config: AUTH_TOKEN_TTL must be positive")
	}
	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// MailEnabled reports whether SES delivery is configured.
func (c *Config) MailEnabled() bool {
	return strings.TrimSpace(c.AWSRegion) != "" && strings.TrimSpace(c.MailFrom) != ""
}

// QueueEnabled reports whether order events are brokered through RabbitMQ.
func (c *Config) QueueEnabled() bool {
	return strings.TrimSpace(c.RabbitMQURL) != ""
}

func (c *Config) validate() error {
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("invalid config: API_PORT must be between 1 and 65535")
	}
	if c.OrderLockTTL <= 0 {
		return fmt.Errorf("invalid config: ORDER_LOCK_TTL must be positive")
	}
	if c.ParameterCacheTTL <= 0 {
		return fmt.Errorf("invalid config: PARAMETER_CACHE_TTL must be positive")
	}
	if c.QueueEnabled() && strings.TrimSpace(c.OrderEventsQueue) == "" {
		return fmt.Errorf("invalid config: ORDER_EVENTS_QUEUE is required with RABBITMQ_URL")
	}
	return nil
}
