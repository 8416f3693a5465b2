package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/interviewprep/internal/auth"
	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/ashureev/interviewprep/internal/feedback"
	"github.com/ashureev/interviewprep/internal/interview"
	"github.com/go-chi/chi/v5"
)

// InterviewHandler serves interviews and their feedback to signed-in users.
type InterviewHandler struct {
	interviews *interview.Service
	feedback   *feedback.Service
}

// NewInterviewHandler creates an interview handler.
func NewInterviewHandler(interviews *interview.Service, fb *feedback.Service) *InterviewHandler {
	return &InterviewHandler{interviews: interviews, feedback: fb}
}

// RegisterRoutes registers interview routes. They require a signed-in user.
func (h *InterviewHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/interviews", func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/", h.List)
		r.Get("/latest", h.Latest)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/feedback", h.GetFeedback)
		r.Post("/{id}/feedback", h.CreateFeedback)
	})
}

// List returns the user's interviews.
func (h *InterviewHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	interviews, err := h.interviews.ListByUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to list interviews", "error", err, "user_id", user.ID)
		Error(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}
	JSON(w, http.StatusOK, nonNil(interviews))
}

// Latest returns other users' recent interviews.
func (h *InterviewHandler) Latest(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	interviews, err := h.interviews.ListLatest(r.Context(), user.ID, limit)
	if err != nil {
		slog.Error("Failed to list latest interviews", "error", err, "user_id", user.ID)
		Error(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}
	JSON(w, http.StatusOK, nonNil(interviews))
}

// Get returns one interview.
func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	iv, err := h.interviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, interview.ErrNotFound) {
			Error(w, http.StatusNotFound, "interview not found")
			return
		}
		slog.Error("Failed to get interview", "error", err)
		Error(w, http.StatusInternalServerError, "failed to get interview")
		return
	}
	JSON(w, http.StatusOK, iv)
}

// GetFeedback returns the user's feedback for an interview.
func (h *InterviewHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	fb, err := h.feedback.GetByInterview(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		slog.Error("Failed to get feedback", "error", err, "user_id", user.ID)
		Error(w, http.StatusInternalServerError, "failed to get feedback")
		return
	}
	if fb == nil {
		Error(w, http.StatusNotFound, "feedback not found")
		return
	}
	JSON(w, http.StatusOK, fb)
}

type createFeedbackRequest struct {
	Transcript []domain.TranscriptMessage `json:"transcript"`
	FeedbackID string                     `json:"feedbackId,omitempty"`
}

// CreateFeedback scores a transcript for the signed-in user.
func (h *InterviewHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	var body createFeedbackRequest
	if err := decodeJSON(w, r, &body); err != nil {
		JSON(w, http.StatusBadRequest, domain.FeedbackResult{Success: false})
		return
	}

	result, err := h.feedback.CreateFeedback(r.Context(), domain.FeedbackRequest{
		InterviewID: chi.URLParam(r, "id"),
		UserID:      user.ID,
		Transcript:  body.Transcript,
		FeedbackID:  body.FeedbackID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, feedback.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, feedback.ErrInterviewNotFound):
			status = http.StatusNotFound
		default:
			slog.Error("Error saving feedback", "error", err, "user_id", user.ID)
		}
		JSON(w, status, domain.FeedbackResult{Success: false})
		return
	}
	JSON(w, http.StatusOK, result)
}

func nonNil(interviews []*domain.Interview) []*domain.Interview {
	if interviews == nil {
		return []*domain.Interview{}
	}
	return interviews
}
