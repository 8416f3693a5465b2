package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/interviewprep/internal/api"
	"github.com/ashureev/interviewprep/internal/auth"
	"github.com/ashureev/interviewprep/internal/callsession"
	"github.com/ashureev/interviewprep/internal/config"
	"github.com/ashureev/interviewprep/internal/feedback"
	"github.com/ashureev/interviewprep/internal/interview"
	"github.com/ashureev/interviewprep/internal/llm"
	"github.com/ashureev/interviewprep/internal/store"
	"github.com/ashureev/interviewprep/internal/voice"
	"github.com/samber/do/v2"
)

const backendInitTimeout = 15 * time.Second

var errGeneratorUnavailable = errors.New("gemini backend requires GOOGLE_API_KEY")

// noGenerator rejects generation when no model backend is configured.
type noGenerator struct{}

func (noGenerator) GenerateQuestions(context.Context, interview.QuestionRequest) ([]string, error) {
	return nil, errGeneratorUnavailable
}

func setupDI(cfg *config.Config, logger *slog.Logger) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)

	do.Provide(injector, func(i do.Injector) (store.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), backendInitTimeout)
		defer cancel()

		if cfg.DBDriver == config.DriverPostgres {
			pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			return pg, nil
		}
		lite, err := store.NewSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	})

	do.Provide(injector, func(i do.Injector) (*auth.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[store.Repository](i)
		return auth.NewService(repo, auth.Options{
			Secret: []byte(cfg.Session.Secret),
			TTL:    cfg.Session.TTL,
			IsDev:  cfg.IsDevelopment(),
		}), nil
	})

	do.Provide(injector, func(i do.Injector) (*llm.Gemini, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.Scoring.GoogleAPIKey == "" {
			return nil, errGeneratorUnavailable
		}
		ctx, cancel := context.WithTimeout(context.Background(), backendInitTimeout)
		defer cancel()
		return llm.NewGemini(ctx, cfg.Scoring.GoogleAPIKey, cfg.Scoring.GeminiModel)
	})

	do.Provide(injector, func(i do.Injector) (feedback.Scorer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.Scoring.Scorer == config.ScorerGRPC {
			grpcCfg := llm.DefaultGrpcScorerConfig(cfg.Scoring.GRPCAddr)
			grpcCfg.RequestTimeout = cfg.Scoring.GRPCTimeout
			scorer, err := llm.NewGrpcScorer(grpcCfg, do.MustInvoke[*slog.Logger](i))
			if err != nil {
				return nil, err
			}
			return scorer, nil
		}
		gemini, err := do.Invoke[*llm.Gemini](i)
		if err != nil {
			return nil, fmt.Errorf("gemini scorer: %w", err)
		}
		return gemini, nil
	})

	do.Provide(injector, func(i do.Injector) (*interview.Service, error) {
		repo := do.MustInvoke[store.Repository](i)
		var gen interview.QuestionGenerator = noGenerator{}
		if gemini, err := do.Invoke[*llm.Gemini](i); err == nil {
			gen = gemini
		} else {
			slog.Warn("Interview generation disabled", "error", err)
		}
		return interview.NewService(repo, gen), nil
	})

	do.Provide(injector, func(i do.Injector) (*feedback.Service, error) {
		repo := do.MustInvoke[store.Repository](i)
		scorer, err := do.Invoke[feedback.Scorer](i)
		if err != nil {
			return nil, err
		}
		return feedback.NewService(repo, scorer), nil
	})

	do.Provide(injector, func(i do.Injector) (voice.Dialer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return voice.NewWSDialer(voice.WSConfig{
			URL:    cfg.Voice.GatewayURL,
			APIKey: cfg.Voice.APIKey,
		}), nil
	})

	do.Provide(injector, func(i do.Injector) (*callsession.SessionManager, error) {
		return callsession.NewSessionManager(), nil
	})

	do.Provide(injector, func(i do.Injector) (*callsession.ConversationLogger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return callsession.NewConversationLogger(callsession.ConversationLogConfig{
			Enabled:   cfg.ConversationLog.Enabled,
			Dir:       cfg.ConversationLog.Dir,
			QueueSize: cfg.ConversationLog.QueueSize,
		}, do.MustInvoke[*slog.Logger](i))
	})

	do.Provide(injector, func(i do.Injector) (*callsession.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		fb, err := do.Invoke[*feedback.Service](i)
		if err != nil {
			return nil, err
		}
		return callsession.NewHandler(
			do.MustInvoke[*interview.Service](i),
			fb,
			do.MustInvoke[voice.Dialer](i),
			do.MustInvoke[*callsession.SessionManager](i),
			do.MustInvoke[*callsession.ConversationLogger](i),
			callsession.Options{
				WorkflowID:        cfg.Voice.WorkflowID,
				PermissionTimeout: cfg.Call.PermissionTimeout,
				SubmitTimeout:     cfg.Call.SubmitTimeout,
				QueueSize:         cfg.Call.OutboundQueueSize,
				AllowedOrigin:     cfg.FrontendURL,
				IsDev:             cfg.IsDevelopment(),
			},
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*api.AuthHandler, error) {
		return api.NewAuthHandler(
			do.MustInvoke[*auth.Service](i),
			do.MustInvoke[*callsession.SessionManager](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*api.InterviewHandler, error) {
		fb, err := do.Invoke[*feedback.Service](i)
		if err != nil {
			return nil, err
		}
		return api.NewInterviewHandler(do.MustInvoke[*interview.Service](i), fb), nil
	})

	do.Provide(injector, func(i do.Injector) (*api.VoiceHandler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return api.NewVoiceHandler(do.MustInvoke[*interview.Service](i), cfg.Voice.WebhookSecret), nil
	})

	do.Provide(injector, func(i do.Injector) (*api.HealthHandler, error) {
		return api.NewHealthHandler(
			do.MustInvoke[store.Repository](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})

	return injector
}
