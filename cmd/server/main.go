// PrepWise - AI mock interview server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/interviewprep/internal/api"
	"github.com/ashureev/interviewprep/internal/auth"
	"github.com/ashureev/interviewprep/internal/callsession"
	"github.com/ashureev/interviewprep/internal/config"
	"github.com/ashureev/interviewprep/internal/feedback"
	"github.com/ashureev/interviewprep/internal/llm"
	"github.com/ashureev/interviewprep/internal/middleware"
	"github.com/ashureev/interviewprep/internal/store"
	"github.com/ashureev/interviewprep/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/samber/do/v2"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"db_driver", cfg.DBDriver,
		"scorer", cfg.Scoring.Scorer,
		"container", config.IsContainer(),
	)

	injector := setupDI(cfg, logger)

	// Initialize dependencies.
	repo, err := do.Invoke[store.Repository](injector)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	scorer, err := do.Invoke[feedback.Scorer](injector)
	if err != nil {
		slog.Error("Failed to initialize feedback scorer", "error", err)
		os.Exit(1)
	}
	if closer, ok := scorer.(*llm.GrpcScorer); ok {
		defer closer.Close()
	}

	convLog, err := do.Invoke[*callsession.ConversationLogger](injector)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Initialize handlers.
	authSvc := do.MustInvoke[*auth.Service](injector)
	healthHandler := do.MustInvoke[*api.HealthHandler](injector)
	authHandler := do.MustInvoke[*api.AuthHandler](injector)
	interviewHandler := do.MustInvoke[*api.InterviewHandler](injector)
	voiceHandler := do.MustInvoke[*api.VoiceHandler](injector)
	callHandler := do.MustInvoke[*callsession.Handler](injector)

	allowedOrigins := []string{"*"}
	if !cfg.IsDevelopment() && cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(auth.Middleware(authSvc))

	// Public routes.
	healthHandler.RegisterHealth(r)
	authHandler.RegisterRoutes(r)
	voiceHandler.RegisterRoutes(r)

	// Signed-in routes.
	interviewHandler.RegisterRoutes(r)
	r.With(auth.RequireUser).Get("/ws/call", callHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Call sockets are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeperDone := auth.StartSessionSweeper(ctx, repo, cfg.Session.SweepInterval)
	slog.Info("Session sweeper started", "interval", cfg.Session.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
}
