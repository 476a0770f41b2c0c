package config

import (
	"fmt"

	pkgconfig "github.com/trongdv/bookstore/pkg/config"
)

// Config holds all configuration for the bookstore web frontend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"WEB_HTTP_PORT" envDefault:"8081"`

	// Upstream API
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`

	// BaseURL is this frontend's externally visible address, used to build
	// the ClientUrl sent to the API for email links.
	BaseURL string `env:"WEB_BASE_URL" envDefault:"http://localhost:8081"`

	// SecureCookies controls the cookie Secure flag. Disable only for
	// plain-HTTP local development.
	SecureCookies bool `env:"WEB_SECURE_COOKIES" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load web config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	return cfg, nil
}
