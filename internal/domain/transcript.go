package domain

import "fmt"

// Role identifies the speaker of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known speaker roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSystem, RoleAssistant:
		return true
	default:
		return false
	}
}

// TranscriptMessage is one finalized utterance of a call.
type TranscriptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Mode selects what a call is for.
type Mode string

const (
	// ModeGenerate runs the question-generation workflow.
	ModeGenerate Mode = "generate"
	// ModeFeedback runs a scored interview over existing questions.
	ModeFeedback Mode = "feedback"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGenerate, ModeFeedback:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown call mode %q", s)
	}
}
