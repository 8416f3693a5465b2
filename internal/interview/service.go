// Package interview generates and serves practice interviews.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/ashureev/interviewprep/internal/store"
	"github.com/google/uuid"
)

const (
	maxQuestions       = 20
	defaultLatestLimit = 20
)

var (
	// ErrInvalidParams is returned for incomplete generation parameters.
	ErrInvalidParams = errors.New("invalid interview parameters")
	// ErrNotFound is returned when an interview does not exist.
	ErrNotFound = errors.New("interview not found")
)

var coverImages = []string{
	"/adobe.png", "/amazon.png", "/facebook.png", "/hostinger.png",
	"/pinterest.png", "/quora.png", "/reddit.png", "/skype.png",
	"/spotify.png", "/telegram.png", "/tiktok.png", "/yahoo.png",
}

// GenerateParams is the payload the voice workflow posts at the end of a
// generate-mode call.
type GenerateParams struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Level     string `json:"level"`
	TechStack string `json:"techstack"`
	Amount    int    `json:"amount"`
	UserID    string `json:"userid"`
}

// QuestionRequest is what a QuestionGenerator is asked for.
type QuestionRequest struct {
	Role      string
	Level     string
	Type      string
	TechStack []string
	Amount    int
}

// QuestionGenerator produces interview questions.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error)
}

// Service manages interviews.
type Service struct {
	repo      store.Repository
	generator QuestionGenerator
	now       func() time.Time
	cover     func() string
}

// NewService creates an interview service.
func NewService(repo store.Repository, generator QuestionGenerator) *Service {
	return &Service{
		repo:      repo,
		generator: generator,
		now:       time.Now,
		cover:     RandomCover,
	}
}

// RandomCover picks a cover image path.
func RandomCover() string {
	return "/covers" + coverImages[rand.IntN(len(coverImages))]
}

// Generate asks the generator for questions and stores a finalized interview.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (*domain.Interview, error) {
	req, err := normalize(params)
	if err != nil {
		return nil, err
	}

	questions, err := s.generator.GenerateQuestions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	questions = cleanQuestions(questions)
	if len(questions) == 0 {
		return nil, fmt.Errorf("generate questions: generator returned no questions")
	}

	interview := &domain.Interview{
		ID:         uuid.NewString(),
		UserID:     strings.TrimSpace(params.UserID),
		Role:       req.Role,
		Level:      req.Level,
		Type:       req.Type,
		TechStack:  req.TechStack,
		Questions:  questions,
		Finalized:  true,
		CoverImage: s.cover(),
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("save interview: %w", err)
	}

	slog.Info("Interview generated", "interview_id", interview.ID, "user_id", interview.UserID, "questions", len(questions))
	return interview, nil
}

// Get returns an interview by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Interview, error) {
	interview, err := s.repo.GetInterview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up interview: %w", err)
	}
	if interview == nil {
		return nil, ErrNotFound
	}
	return interview, nil
}

// ListByUser returns the user's interviews, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.Interview, error) {
	interviews, err := s.repo.ListInterviewsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	return interviews, nil
}

// ListLatest returns finalized interviews created by other users.
func (s *Service) ListLatest(ctx context.Context, excludeUserID string, limit int) ([]*domain.Interview, error) {
	if limit <= 0 || limit > defaultLatestLimit {
		limit = defaultLatestLimit
	}
	interviews, err := s.repo.ListLatestInterviews(ctx, excludeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list latest interviews: %w", err)
	}
	return interviews, nil
}

func normalize(p GenerateParams) (QuestionRequest, error) {
	req := QuestionRequest{
		Role:      strings.TrimSpace(p.Role),
		Level:     strings.TrimSpace(p.Level),
		Type:      strings.TrimSpace(p.Type),
		TechStack: SplitTechStack(p.TechStack),
		Amount:    p.Amount,
	}
	switch {
	case req.Role == "":
		return req, fmt.Errorf("%w: role is required", ErrInvalidParams)
	case req.Level == "":
		return req, fmt.Errorf("%w: level is required", ErrInvalidParams)
	case req.Type == "":
		return req, fmt.Errorf("%w: type is required", ErrInvalidParams)
	case strings.TrimSpace(p.UserID) == "":
		return req, fmt.Errorf("%w: userid is required", ErrInvalidParams)
	case req.Amount <= 0 || req.Amount > maxQuestions:
		return req, fmt.Errorf("%w: amount must be between 1 and %d", ErrInvalidParams, maxQuestions)
	}
	return req, nil
}

// SplitTechStack splits a comma-separated list, dropping blanks.
func SplitTechStack(csv string) []string {
	out := []string{}
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cleanQuestions(questions []string) []string {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
