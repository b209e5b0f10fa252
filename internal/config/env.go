package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ServerEnv holds server settings that only come from the environment.
type ServerEnv struct {
	JWTSecret        string `env:"PANEL_JWT_SECRET"`
	AllowActorHeader bool   `env:"PANEL_ALLOW_ACTOR_HEADER" envDefault:"false"`
	Addr             string `env:"PANEL_ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel         string `env:"PANEL_LOG_LEVEL" envDefault:"info"`
	OTelEndpoint     string `env:"PANEL_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServerEnv parses ServerEnv.
func LoadServerEnv() (ServerEnv, error) {
	var cfg ServerEnv
	if err := ParseEnv(&cfg); err != nil {
		return ServerEnv{}, err
	}
	return cfg, nil
}
