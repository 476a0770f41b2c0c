package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/trongdv/bookstore/pkg/config"
	"github.com/trongdv/bookstore/pkg/database"
)

// Config holds all configuration for the bookstore API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"API_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"bookstore"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"bookstore_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"bookstore_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (cart storage)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"bookstore-api"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"bookstore-clients"`
	JWTLifetime time.Duration `env:"JWT_LIFETIME" envDefault:"24h"`

	// Single-use token lifetimes
	EmailConfirmTokenTTL  time.Duration `env:"EMAIL_CONFIRM_TOKEN_TTL" envDefault:"72h"`
	PasswordResetTokenTTL time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"2h"`

	// VnPay merchant credentials
	VnPayTmnCode    string `env:"VNPAY_TMN_CODE"`
	VnPayHashSecret string `env:"VNPAY_HASH_SECRET"`
	VnPayBaseURL    string `env:"VNPAY_BASE_URL" envDefault:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	VnPayReturnURL  string `env:"VNPAY_RETURN_URL" envDefault:"http://localhost:8080/api/cart/vnpay-response"`
	VnPayVersion    string `env:"VNPAY_VERSION" envDefault:"2.1.0"`
	VnPayCommand    string `env:"VNPAY_COMMAND" envDefault:"pay"`
	VnPayCurrCode   string `env:"VNPAY_CURR_CODE" envDefault:"VND"`
	VnPayLocale     string `env:"VNPAY_LOCALE" envDefault:"vn"`
	VnPayOrderType  string `env:"VNPAY_ORDER_TYPE" envDefault:"other"`

	// Email delivery: "smtp" sends real mail, "log" writes it to the log.
	EmailSender string `env:"EMAIL_SENDER" envDefault:"smtp"`

	// SMTP (confirmation and reset emails)
	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPUser     string `env:"SMTP_USER" envDefault:""`
	SMTPPassword string `env:"SMTP_PASSWORD" envDefault:""`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@bookstore.local"`

	// Rate limiting (requests per second per client IP)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load api config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.EmailSender != "smtp" && cfg.EmailSender != "log" {
		return nil, fmt.Errorf("invalid EMAIL_SENDER: %q (want smtp or log)", cfg.EmailSender)
	}

	// In non-development environments, require explicitly set secrets.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == "change-this-to-a-secure-secret" {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
		if cfg.VnPayHashSecret == "" {
			return nil, fmt.Errorf("VNPAY_HASH_SECRET must be set in %q mode", cfg.Environment)
		}
	}

	return cfg, nil
}

// Postgres returns the pool configuration for the primary database.
func (c *Config) Postgres() *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return &pg
}

// Redis returns the cart store connection configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
