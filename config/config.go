package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only accepted outside production.
const DefaultJWTSecret = "legal-secret-key"

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"dev"`
	Port        string `env:"PORT" envDefault:"3000"`

	StoreDriver string   `env:"STORE_DRIVER" envDefault:"postgres"`
	DB          DBConfig `envPrefix:"DB_"`

	JWTSecret      string        `env:"JWT_SECRET"`
	LawyerTokenTTL time.Duration `env:"LAWYER_TOKEN_TTL" envDefault:"24h"`
	ClientTokenTTL time.Duration `env:"CLIENT_TOKEN_TTL" envDefault:"168h"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:8000"`
	Mail        MailConfig

	RedisHost        string `env:"REDIS_HOST"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	KafkaBroker      string `env:"KAFKA_BROKER"`
	KafkaGroupID     string `env:"KAFKA_GROUP_ID" envDefault:"legalestate-directory"`
	ElasticsearchURL string `env:"ELASTICSEARCH_URL"`
	SentryDSN        string `env:"SENTRY_DSN"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	BodyLimitBytes  int64         `env:"BODY_LIMIT_BYTES" envDefault:"10485760"`

	// UsingDefaultSecret reports that JWT_SECRET was not set.
	UsingDefaultSecret bool `env:"-"`
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"legal_platform"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN renders a libpq style connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host,
		c.User,
		c.Password,
		c.Name,
		c.Port,
		c.SSLMode,
	)
}

// MailConfig configures outbound invitation mail.
type MailConfig struct {
	Driver   string `env:"MAIL_DRIVER" envDefault:"smtp"`
	Host     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM" envDefault:"noreply@legalestatepro.com"`
}

// Load reads configuration from the environment, after merging a local .env file if present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	c.Mail.Driver = strings.ToLower(strings.TrimSpace(c.Mail.Driver))
	switch c.Mail.Driver {
	case MailDriverSMTP, MailDriverLog:
	default:
		return fmt.Errorf("MAIL_DRIVER must be %q or %q", MailDriverSMTP, MailDriverLog)
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = DefaultJWTSecret
		c.UsingDefaultSecret = true
	}

	if c.LawyerTokenTTL <= 0 || c.ClientTokenTTL <= 0 {
		return errors.New("token ttl values must be positive")
	}
	if c.RedisHost != "" && !strings.Contains(c.RedisHost, ":") {
		c.RedisHost += ":6379"
	}
	c.FrontendURL = strings.TrimRight(c.FrontendURL, "/")
	return nil
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
