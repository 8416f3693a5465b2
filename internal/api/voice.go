package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/interviewprep/internal/interview"
	"github.com/go-chi/chi/v5"
)

// VoiceSecretHeader carries the shared secret of the voice workflow webhook.
const VoiceSecretHeader = "X-Voice-Secret"

// VoiceHandler receives the question-generation workflow's webhook.
type VoiceHandler struct {
	interviews *interview.Service
	secret     string
}

// NewVoiceHandler creates a webhook handler. An empty secret disables the
// header check.
func NewVoiceHandler(interviews *interview.Service, secret string) *VoiceHandler {
	return &VoiceHandler{interviews: interviews, secret: secret}
}

// RegisterRoutes registers voice workflow routes.
func (h *VoiceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/voice", func(r chi.Router) {
		r.Get("/generate", h.Ping)
		r.Post("/generate", h.Generate)
	})
}

// Ping answers the workflow's reachability probe.
func (h *VoiceHandler) Ping(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"success": true, "data": "Thank you!"})
}

// Generate creates an interview from the workflow's collected parameters.
func (h *VoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(VoiceSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			slog.Warn("Rejected voice webhook with bad secret", "ip", r.RemoteAddr)
			Respond(w, http.StatusUnauthorized, false, msgUnauthorized)
			return
		}
	}

	var params interview.GenerateParams
	if err := decodeJSON(w, r, &params); err != nil {
		Respond(w, http.StatusBadRequest, false, msgBadRequest)
		return
	}

	iv, err := h.interviews.Generate(r.Context(), params)
	if err != nil {
		if errors.Is(err, interview.ErrInvalidParams) {
			Respond(w, http.StatusBadRequest, false, err.Error())
			return
		}
		slog.Error("Failed to generate interview", "error", err, "user_id", params.UserID)
		Respond(w, http.StatusInternalServerError, false, "failed to generate interview")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"interview_id": iv.ID,
	})
}
