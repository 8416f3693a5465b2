package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/interviewprep/internal/config"
	"github.com/ashureev/interviewprep/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check and client configuration endpoints.
type HealthHandler struct {
	repo store.Repository
	cfg  *config.Config
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, cfg *config.Config) *HealthHandler {
	return &HealthHandler{repo: repo, cfg: cfg}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// Config returns the public client configuration.
func (h *HealthHandler) Config(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"call_socket_path":    "/ws/call",
		"workflow_configured": h.cfg.Voice.WorkflowID != "",
		"scorer":              h.cfg.Scoring.Scorer,
		"session_ttl_seconds": int64(h.cfg.Session.TTL.Seconds()),
		"dev":                 h.cfg.IsDevelopment(),
	})
}

// RegisterHealth registers the health check and config routes.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/config", h.Config)
}
