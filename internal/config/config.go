package config

import (
	"encoding/base64"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds the environment-sourced settings. Flags in cmd/server may
// override any of them.
type Env struct {
	ServerAddr     string   `envconfig:"SERVER_ADDR" default:"localhost:8000"`
	DatabaseURL    string   `envconfig:"DATABASE_URL"`
	SigningSecret  string   `envconfig:"SIGNING_SECRET"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

type Config struct {
	ServerAddr     string
	DatabaseURL    string
	SigningKey     []byte
	AllowedOrigins []string
}

func FromEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("pawchat", &env); err != nil {
		return Env{}, fmt.Errorf("process env: %w", err)
	}
	return env, nil
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseURL, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseURL:    databaseURL,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
	}, nil
}
