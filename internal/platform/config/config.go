package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds the process configuration, loaded from the environment.
type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// UpstreamWSURL is the websocket base URL the transports dial,
	// e.g. "wss://realtime.internal".
	UpstreamWSURL string `env:"UPSTREAM_WS_URL"`

	// AnnotatorURL points at the external content-analysis service.
	// Empty disables annotation entirely.
	AnnotatorURL string `env:"ANNOTATOR_URL"`

	// MaxConnections caps concurrent connection handles per process.
	MaxConnections int64 `env:"MAX_CONNECTIONS" default:"10000"`

	// ConnectRatePerTenant limits new connections per tenant per second.
	ConnectRatePerTenant  float64 `env:"CONNECT_RATE_PER_TENANT" default:"10"`
	ConnectBurstPerTenant int     `env:"CONNECT_BURST_PER_TENANT" default:"10"`

	// ClassifierTimeout bounds a single annotator invocation.
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" default:"500ms"`

	// ShutdownTimeout bounds graceful teardown of connections and server.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from a .env file (if present) and the
// environment, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL":    cfg.DatabaseURL,
		"REDIS_URL":       cfg.RedisURL,
		"UPSTREAM_WS_URL": cfg.UpstreamWSURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive, got %s", cfg.ClassifierTimeout)
	}

	return nil
}
