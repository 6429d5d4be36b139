package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"

	TransportHTTP  = "http"
	TransportRedis = "redis"
)

// Config is built once at process start and handed to every component.
type Config struct {
	Port               string
	SlackBotToken      string
	SlackSigningSecret string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	DelegateTransport string
	RedisURL          string
	WorkerQueue       string
	WorkerURL         string

	SweepSchedule string
	NgrokTunnel   bool
	LogLevel      string
}

// LoadEnv reads .env outside hosted environments. A missing file is not an error.
func LoadEnv() error {
	if os.Getenv("RAILWAY_ENVIRONMENT") != "" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("LoadEnv: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	port := envOrDefault("PORT", "8080")
	cfg := &Config{
		Port:               port,
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		StoreDriver:        strings.ToLower(envOrDefault("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MongoURI:           envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      envOrDefault("MONGO_DATABASE", "standup"),
		DelegateTransport:  strings.ToLower(envOrDefault("DELEGATE_TRANSPORT", TransportHTTP)),
		RedisURL:           os.Getenv("REDIS_URL"),
		WorkerQueue:        envOrDefault("WORKER_QUEUE", "standup:worker"),
		WorkerURL:          envOrDefault("WORKER_URL", "http://localhost:"+port),
		SweepSchedule:      envOrDefault("SWEEP_SCHEDULE", "@every 10m"),
		NgrokTunnel:        isTruthy(os.Getenv("NGROK_TUNNEL")),
		LogLevel:           strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var missing []string
	if c.SlackBotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.SlackSigningSecret == "" {
		missing = append(missing, "SLACK_SIGNING_SECRET")
	}

	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	default:
		return fmt.Errorf("Validate: unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.DelegateTransport {
	case TransportHTTP:
	case TransportRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return fmt.Errorf("Validate: unsupported DELEGATE_TRANSPORT %q", c.DelegateTransport)
	}

	if len(missing) > 0 {
		return fmt.Errorf("Validate: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
