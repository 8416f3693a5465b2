package domain

import "time"

// CategoryScore is the score of one assessment category.
type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Feedback is the persisted assessment of one interview attempt.
type Feedback struct {
	ID                  string          `json:"id"`
	InterviewID         string          `json:"interview_id"`
	UserID              string          `json:"user_id"`
	TotalScore          int             `json:"total_score"`
	CategoryScores      []CategoryScore `json:"category_scores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areas_for_improvement"`
	FinalAssessment     string          `json:"final_assessment"`
	CreatedAt           time.Time       `json:"created_at"`
}

// FeedbackRequest asks for a transcript to be scored and persisted.
type FeedbackRequest struct {
	InterviewID string              `json:"interview_id"`
	UserID      string              `json:"user_id"`
	Transcript  []TranscriptMessage `json:"transcript"`
	FeedbackID  string              `json:"feedback_id,omitempty"`
}

// FeedbackResult is the outcome of a FeedbackRequest.
type FeedbackResult struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedback_id,omitempty"`
}
