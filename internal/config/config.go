package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration read from the environment
type Config struct {
	DatabaseURL     string        `env:"DATABASE_URL,required,notEmpty"`
	Port            string        `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"INFO"`
	ErrorSampleRate int           `env:"ERROR_SAMPLE_RATE" envDefault:"1"`
	OTELEnabled     bool          `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName     string        `env:"OTEL_SERVICE_NAME" envDefault:"actionx"`
	TracesEndpoint  string        `env:"OTEL_TRACES_ENDPOINT"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads Config from the environment
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
