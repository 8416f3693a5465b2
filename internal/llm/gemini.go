// Package llm provides the model-backed scoring and question generation
// backends.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ashureev/interviewprep/internal/feedback"
	"github.com/ashureev/interviewprep/internal/interview"
	"google.golang.org/genai"
)

var errEmptyResponse = errors.New("model returned an empty response")

// contentGenerator is the subset of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini scores transcripts and generates questions with a Gemini model.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a Gemini backend using the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

// Score implements feedback.Scorer.
func (g *Gemini) Score(ctx context.Context, transcript string) (*feedback.Assessment, error) {
	var out feedback.Assessment
	err := g.generateJSON(ctx, scoringPrompt(transcript), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(scoringSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    assessmentSchema(),
	}, &out)
	if err != nil {
		return nil, err
	}

	for _, c := range out.CategoryScores {
		if !slices.Contains(Categories, c.Name) {
			return nil, fmt.Errorf("%w: unknown category %q", feedback.ErrInvalidAssessment, c.Name)
		}
	}
	return &out, nil
}

// GenerateQuestions implements interview.QuestionGenerator.
func (g *Gemini) GenerateQuestions(ctx context.Context, req interview.QuestionRequest) ([]string, error) {
	var questions []string
	err := g.generateJSON(ctx, questionsPrompt(req), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   questionsSchema(),
	}, &questions)
	if err != nil {
		return nil, err
	}
	if len(questions) > req.Amount {
		questions = questions[:req.Amount]
	}
	return questions, nil
}

func (g *Gemini) generateJSON(ctx context.Context, prompt string, config *genai.GenerateContentConfig, out any) error {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return errEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}
