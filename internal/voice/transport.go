// Package voice defines the realtime voice-call transport boundary and a
// WebSocket client for the voice gateway.
package voice

import (
	"context"
	"errors"

	"github.com/ashureev/interviewprep/internal/domain"
)

// EventType identifies a transport event.
type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventError       EventType = "error"
)

// TranscriptType distinguishes finalized from interim transcripts.
type TranscriptType string

const (
	TranscriptFinal   TranscriptType = "final"
	TranscriptPartial TranscriptType = "partial"
)

// MessageTypeTranscript is the message type carrying speech transcripts.
const MessageTypeTranscript = "transcript"

// ErrSessionActive is returned by Start while the handle already drives a call.
var ErrSessionActive = errors.New("voice session already active")

// Message is the payload of an EventMessage.
type Message struct {
	Type           string         `json:"type"`
	TranscriptType TranscriptType `json:"transcriptType,omitempty"`
	Role           domain.Role    `json:"role,omitempty"`
	Transcript     string         `json:"transcript,omitempty"`
}

// IsFinalTranscript reports whether m is a finalized transcript.
func (m *Message) IsFinalTranscript() bool {
	return m != nil && m.Type == MessageTypeTranscript && m.TranscriptType == TranscriptFinal
}

// Event is delivered to listeners in the order the transport observed it.
type Event struct {
	Type    EventType
	CallID  string
	JoinURL string
	Message *Message
	Err     error
}

// Target selects what the call runs: a hosted workflow or an inline assistant.
type Target struct {
	WorkflowID string
	Assistant  *Assistant
}

// Listener receives transport events.
type Listener func(Event)

// Transport is one owned voice-call handle. A handle drives at most one call
// at a time.
type Transport interface {
	// Start begins a call and returns once the gateway accepted it.
	Start(ctx context.Context, target Target, variables map[string]string) error
	// Stop requests the call to end without waiting for acknowledgment.
	Stop() error
	// Subscribe registers a listener until the subscription is closed.
	Subscribe(l Listener) *Subscription
}

// Dialer creates transport handles.
type Dialer interface {
	NewTransport() Transport
}
