package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Deployment modes. Self-hosted installs skip subscriptions and quota checks
// entirely; the hosted service enforces the tier table.
const (
	ModeSelfHosted = "self-hosted"
	ModeSaaS       = "saas"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"DueTrack"`
		Port int    `envconfig:"PORT" default:"8080"`
		Mode string `envconfig:"DEPLOYMENT_MODE" default:"self-hosted"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"duetrack"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Auth struct {
		JWTSecret string        `envconfig:"JWT_SECRET" default:""`
		TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
		// Registration is open on the hosted service and disabled by
		// default for self-hosted installs, which provision users via
		// the admin surface instead.
		EnableRegistration bool `envconfig:"ENABLE_REGISTRATION" default:"false"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// SelfHosted reports whether this install runs outside the hosted service.
func (c *Config) SelfHosted() bool {
	return c.App.Mode != ModeSaaS
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if !cfg.SelfHosted() && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in saas mode")
	}

	return &cfg, nil
}
