package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("GOOGLE_API_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.DBDriver)
	}
	if cfg.Session.TTL != 7*24*time.Hour {
		t.Errorf("expected 7 day session TTL, got %v", cfg.Session.TTL)
	}
	if cfg.Call.PermissionTimeout != 30*time.Second {
		t.Errorf("expected 30s permission timeout, got %v", cfg.Call.PermissionTimeout)
	}
	if cfg.Scoring.Scorer != ScorerGemini {
		t.Errorf("expected gemini scorer, got %q", cfg.Scoring.Scorer)
	}
	if cfg.IsDevelopment() {
		t.Error("expected production by default")
	}
}

func TestLoadNestedPrefixes(t *testing.T) {
	setRequired(t)
	t.Setenv("VOICE_WORKFLOW_ID", "wf-123")
	t.Setenv("CALL_SUBMIT_TIMEOUT", "5s")
	t.Setenv("CONVERSATION_LOG_ENABLED", "true")
	t.Setenv("CONVERSATION_LOG_DIR", "/tmp/calls")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Voice.WorkflowID != "wf-123" {
		t.Errorf("expected workflow id wf-123, got %q", cfg.Voice.WorkflowID)
	}
	if cfg.Call.SubmitTimeout != 5*time.Second {
		t.Errorf("expected 5s submit timeout, got %v", cfg.Call.SubmitTimeout)
	}
	if !cfg.ConversationLog.Enabled || cfg.ConversationLog.Dir != "/tmp/calls" {
		t.Errorf("unexpected conversation log config: %+v", cfg.ConversationLog)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:     "8080",
			DBDriver: DriverSQLite,
			DBPath:   "./data/test.db",
			Session:  SessionConfig{Secret: testSecret, TTL: time.Hour, SweepInterval: time.Minute},
			Scoring:  ScoringConfig{Scorer: ScorerGemini, GoogleAPIKey: "k"},
			Call:     CallConfig{PermissionTimeout: time.Second, SubmitTimeout: time.Second, OutboundQueueSize: 8},
			ConversationLog: ConversationLogConfig{
				QueueSize: 10,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "short secret", mutate: func(c *Config) { c.Session.Secret = "short" }, wantErr: "SESSION_SECRET"},
		{name: "postgres without url", mutate: func(c *Config) { c.DBDriver = DriverPostgres }, wantErr: "DATABASE_URL"},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "mysql" }, wantErr: "DB_DRIVER"},
		{name: "grpc without addr", mutate: func(c *Config) { c.Scoring.Scorer = ScorerGRPC }, wantErr: "SCORER_GRPC_ADDR"},
		{name: "gemini without key", mutate: func(c *Config) { c.Scoring.GoogleAPIKey = "" }, wantErr: "GOOGLE_API_KEY"},
		{name: "zero permission timeout", mutate: func(c *Config) { c.Call.PermissionTimeout = 0 }, wantErr: "CALL_PERMISSION_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := Config{AppEnv: "development"}
	if !cfg.IsDevelopment() {
		t.Error("expected development for APP_ENV=development")
	}

	setRequired(t)
	t.Setenv("FRONTEND_URL", "http://localhost:3000")
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.IsDevelopment() {
		t.Error("a localhost frontend alone must not switch to development")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
