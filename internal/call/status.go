// Package call implements the call-session controller: the state machine
// that takes one interview call from microphone permission to completion.
package call

// Status is the lifecycle state of a call session.
type Status string

const (
	StatusInactive             Status = "INACTIVE"
	StatusRequestingPermission Status = "REQUESTING_PERMISSION"
	StatusConnecting           Status = "CONNECTING"
	StatusActive               Status = "ACTIVE"
	StatusFinished             Status = "FINISHED"
)

// InFlight reports whether a call is being set up or running.
func (s Status) InFlight() bool {
	switch s {
	case StatusRequestingPermission, StatusConnecting, StatusActive:
		return true
	default:
		return false
	}
}

// User-visible messages.
const (
	MsgPermissionRequired = "Microphone access is required. Please allow permissions."
	MsgStartFailed        = "Failed to start call. Please try again."
	MsgConnectionError    = "Connection error. Please try again."
	MsgFeedbackFailed     = "Failed to save feedback"
	MsgFeedbackError      = "Error saving feedback"
)

// Navigation targets.
const (
	HomePath = "/"
)

// FeedbackPath returns the results view of an interview.
func FeedbackPath(interviewID string) string {
	return "/interview/" + interviewID + "/feedback"
}
