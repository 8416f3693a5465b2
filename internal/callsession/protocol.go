// Package callsession exposes the call-session controller to the browser over
// a WebSocket. The browser acts as the controller's view and answers its
// microphone permission requests.
package callsession

import (
	"github.com/ashureev/interviewprep/internal/call"
	"github.com/ashureev/interviewprep/internal/domain"
)

// Client frame types.
const (
	frameStart      = "start"
	frameEnd        = "end"
	framePermission = "permission"
	framePing       = "ping"
)

// Server frame types.
const (
	frameStatus            = "status"
	frameError             = "error"
	frameTranscript        = "transcript"
	frameSpeaking          = "speaking"
	frameNavigate          = "navigate"
	frameCall              = "call"
	framePermissionRequest = "permission_request"
	framePong              = "pong"
)

// clientFrame is a message sent by the browser.
type clientFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Granted bool   `json:"granted,omitempty"`
	Error   string `json:"error,omitempty"`
}

// serverFrame is a message sent to the browser. Only the fields relevant to
// Type are set.
type serverFrame struct {
	Type       string                    `json:"type"`
	ID         string                    `json:"id,omitempty"`
	Status     call.Status               `json:"status,omitempty"`
	Message    *string                   `json:"message,omitempty"`
	Transcript *domain.TranscriptMessage `json:"transcript,omitempty"`
	Speaking   *bool                     `json:"speaking,omitempty"`
	Path       string                    `json:"path,omitempty"`
	CallID     string                    `json:"call_id,omitempty"`
	JoinURL    string                    `json:"join_url,omitempty"`
}
