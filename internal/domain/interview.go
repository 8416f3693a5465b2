package domain

import "time"

// Interview is a generated set of questions a user can practice against.
type Interview struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	Level      string    `json:"level"`
	Type       string    `json:"type"`
	TechStack  []string  `json:"techstack"`
	Questions  []string  `json:"questions"`
	Finalized  bool      `json:"finalized"`
	CoverImage string    `json:"cover_image"`
	CreatedAt  time.Time `json:"created_at"`
}
