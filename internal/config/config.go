// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Scorer backends.
const (
	ScorerGemini = "gemini"
	ScorerGRPC   = "grpc"
)

// EnvDevelopment is the APP_ENV value that enables development mode.
const EnvDevelopment = "development"

// Config holds all application configuration.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	FrontendURL string `env:"FRONTEND_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"./data/interviewprep.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	Session SessionConfig `envPrefix:"SESSION_"`
	Voice   VoiceConfig   `envPrefix:"VOICE_"`
	Scoring ScoringConfig
	Call    CallConfig `envPrefix:"CALL_"`

	ConversationLog ConversationLogConfig `envPrefix:"CONVERSATION_LOG_"`
}

// SessionConfig controls session cookies.
type SessionConfig struct {
	Secret        string        `env:"SECRET"`
	TTL           time.Duration `env:"TTL" envDefault:"168h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
}

// VoiceConfig controls the realtime voice gateway.
type VoiceConfig struct {
	GatewayURL    string `env:"GATEWAY_URL" envDefault:"wss://voice.example.invalid/v1/calls"`
	APIKey        string `env:"API_KEY"`
	WorkflowID    string `env:"WORKFLOW_ID"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

// ScoringConfig selects the feedback scorer and question generator backends.
type ScoringConfig struct {
	Scorer       string        `env:"SCORER" envDefault:"gemini"`
	GoogleAPIKey string        `env:"GOOGLE_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GRPCAddr     string        `env:"SCORER_GRPC_ADDR"`
	GRPCTimeout  time.Duration `env:"SCORER_GRPC_TIMEOUT" envDefault:"60s"`
}

// CallConfig controls call-session behaviour.
type CallConfig struct {
	PermissionTimeout time.Duration `env:"PERMISSION_TIMEOUT" envDefault:"30s"`
	SubmitTimeout     time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"90s"`
	OutboundQueueSize int           `env:"OUTBOUND_QUEUE_SIZE" envDefault:"64"`
}

// ConversationLogConfig controls NDJSON transcript logging.
type ConversationLogConfig struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Dir       string `env:"DIR" envDefault:"./data/logs/calls"`
	QueueSize int    `env:"QUEUE_SIZE" envDefault:"1000"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	switch c.Scoring.Scorer {
	case ScorerGemini:
		if c.Scoring.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required when SCORER=gemini")
		}
	case ScorerGRPC:
		if c.Scoring.GRPCAddr == "" {
			return fmt.Errorf("SCORER_GRPC_ADDR is required when SCORER=grpc")
		}
	default:
		return fmt.Errorf("SCORER must be %q or %q, got %q", ScorerGemini, ScorerGRPC, c.Scoring.Scorer)
	}
	if c.Call.PermissionTimeout <= 0 {
		return fmt.Errorf("CALL_PERMISSION_TIMEOUT must be > 0")
	}
	if c.Call.SubmitTimeout <= 0 {
		return fmt.Errorf("CALL_SUBMIT_TIMEOUT must be > 0")
	}
	if c.Call.OutboundQueueSize <= 0 {
		return fmt.Errorf("CALL_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
