package app

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

type ConfigLoader interface {
	Load() (*Config, error)
}

// FileConfigLoader loads .env files into the environment, then reads
// config.yaml and GYMCHAT_ environment variables.
// Missing .env files are skipped.
type FileConfigLoader struct {
	Paths    []string
	EnvFiles []string
}

func (l *FileConfigLoader) Load() (*Config, error) {
	envFiles := l.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return LoadConfig(l.Paths...)
}

// DefaultConfigLoader returns a development config backed by a private
// in-memory database and a random secret.
type DefaultConfigLoader struct {
}

func (l *DefaultConfigLoader) Load() (*Config, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	config := &Config{
		Port:           8080,
		Hostname:       "0.0.0.0",
		Mode:           DevMode,
		LogLevel:       "debug",
		AllowedOrigins: []string{"*"},
	}
	if err := config.Auth.Secret.UnmarshalText([]byte(secret)); err != nil {
		return nil, err
	}
	config.Auth.TokenExp = 24 * time.Hour
	config.SQLite.File = ":memory:"
	config.RateLimit.MessagesPerSecond = 1
	config.RateLimit.Burst = 5
	return config, nil
}
