// Package feedback scores finished interview transcripts and persists the result.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/ashureev/interviewprep/internal/store"
	"github.com/google/uuid"
)

var (
	// ErrInvalidRequest is returned for requests missing identifiers or transcript.
	ErrInvalidRequest = errors.New("invalid feedback request")
	// ErrInterviewNotFound is returned when the interview does not exist.
	ErrInterviewNotFound = errors.New("interview not found")
	// ErrInvalidAssessment is returned when the scorer produced an unusable result.
	ErrInvalidAssessment = errors.New("invalid assessment")
)

// Assessment is the scorer's verdict on one transcript.
type Assessment struct {
	TotalScore          int                    `json:"totalScore"`
	CategoryScores      []domain.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
}

// Scorer grades a formatted transcript.
type Scorer interface {
	Score(ctx context.Context, transcript string) (*Assessment, error)
}

// Service implements the feedback persistence action.
type Service struct {
	repo   store.Repository
	scorer Scorer
	now    func() time.Time
}

// NewService creates a feedback service.
func NewService(repo store.Repository, scorer Scorer) *Service {
	return &Service{repo: repo, scorer: scorer, now: time.Now}
}

// CreateFeedback scores req.Transcript and stores the feedback keyed by
// interview and user. Any failure yields Success=false and the cause.
func (s *Service) CreateFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.FeedbackResult, error) {
	if err := validateRequest(req); err != nil {
		return domain.FeedbackResult{}, err
	}

	interview, err := s.repo.GetInterview(ctx, req.InterviewID)
	if err != nil {
		return domain.FeedbackResult{}, fmt.Errorf("look up interview: %w", err)
	}
	if interview == nil {
		return domain.FeedbackResult{}, ErrInterviewNotFound
	}

	assessment, err := s.scorer.Score(ctx, FormatTranscript(req.Transcript))
	if err != nil {
		return domain.FeedbackResult{}, fmt.Errorf("score transcript: %w", err)
	}
	if err := validateAssessment(assessment); err != nil {
		return domain.FeedbackResult{}, err
	}

	id, err := s.feedbackID(ctx, req)
	if err != nil {
		return domain.FeedbackResult{}, err
	}

	fb := &domain.Feedback{
		ID:                  id,
		InterviewID:         req.InterviewID,
		UserID:              req.UserID,
		TotalScore:          assessment.TotalScore,
		CategoryScores:      assessment.CategoryScores,
		Strengths:           assessment.Strengths,
		AreasForImprovement: assessment.AreasForImprovement,
		FinalAssessment:     assessment.FinalAssessment,
		CreatedAt:           s.now(),
	}
	if err := s.repo.UpsertFeedback(ctx, fb); err != nil {
		return domain.FeedbackResult{}, fmt.Errorf("save feedback: %w", err)
	}

	slog.Info("Feedback stored", "interview_id", req.InterviewID, "user_id", req.UserID, "feedback_id", id, "total_score", fb.TotalScore)
	return domain.FeedbackResult{Success: true, FeedbackID: id}, nil
}

// GetByInterview returns the user's latest feedback for an interview, or nil.
func (s *Service) GetByInterview(ctx context.Context, interviewID, userID string) (*domain.Feedback, error) {
	if interviewID == "" || userID == "" {
		return nil, ErrInvalidRequest
	}
	fb, err := s.repo.GetFeedbackByInterview(ctx, interviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("look up feedback: %w", err)
	}
	return fb, nil
}

// feedbackID reuses req.FeedbackID only when it names the user's existing
// feedback for the interview; otherwise a new ID is minted.
func (s *Service) feedbackID(ctx context.Context, req domain.FeedbackRequest) (string, error) {
	if req.FeedbackID == "" {
		return uuid.NewString(), nil
	}
	existing, err := s.repo.GetFeedbackByInterview(ctx, req.InterviewID, req.UserID)
	if err != nil {
		return "", fmt.Errorf("look up feedback: %w", err)
	}
	if existing != nil && existing.ID == req.FeedbackID {
		return req.FeedbackID, nil
	}
	slog.Warn("Ignoring foreign feedback id", "feedback_id", req.FeedbackID, "user_id", req.UserID)
	return uuid.NewString(), nil
}

// FormatTranscript renders one "- role: content" line per message.
func FormatTranscript(transcript []domain.TranscriptMessage) string {
	var b strings.Builder
	for _, m := range transcript {
		fmt.Fprintf(&b, "- %s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func validateRequest(req domain.FeedbackRequest) error {
	switch {
	case req.InterviewID == "":
		return fmt.Errorf("%w: interview id is required", ErrInvalidRequest)
	case req.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	case len(req.Transcript) == 0:
		return fmt.Errorf("%w: transcript is empty", ErrInvalidRequest)
	}
	for i, m := range req.Transcript {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}

func validateAssessment(a *Assessment) error {
	if a == nil {
		return fmt.Errorf("%w: empty result", ErrInvalidAssessment)
	}
	if a.TotalScore < 0 || a.TotalScore > 100 {
		return fmt.Errorf("%w: total score %d out of range", ErrInvalidAssessment, a.TotalScore)
	}
	for _, c := range a.CategoryScores {
		if c.Score < 0 || c.Score > 100 {
			return fmt.Errorf("%w: %s score %d out of range", ErrInvalidAssessment, c.Name, c.Score)
		}
	}
	return nil
}
