package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/ashureev/interviewprep/internal/voice"
)

const defaultSubmitTimeout = 90 * time.Second

var (
	// ErrCallInProgress is returned by StartCall while a call is being set up or running.
	ErrCallInProgress = errors.New("call already in progress")
	// ErrSessionFinished is returned by StartCall after the session reached FINISHED.
	ErrSessionFinished = errors.New("call session finished")
	// ErrNoActiveCall is returned by EndCall when no call is in flight.
	ErrNoActiveCall = errors.New("no active call")
	// ErrPermissionDenied is returned by StartCall when microphone access was refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrCallAborted is returned by StartCall when the call was ended or the
	// controller closed while the start was suspended.
	ErrCallAborted = errors.New("call aborted")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
)

// Session identifies who the call is for and what it is for. It is fixed for
// the lifetime of a controller.
type Session struct {
	UserName    string
	UserID      string
	InterviewID string
	FeedbackID  string
	Mode        domain.Mode
	Questions   []string
}

// PermissionRequester obtains microphone access. A nil error means granted.
type PermissionRequester interface {
	RequestMicrophone(ctx context.Context) error
}

// FeedbackSubmitter scores and persists a finished transcript.
type FeedbackSubmitter interface {
	CreateFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.FeedbackResult, error)
}

// View renders controller state. Methods are called with the controller
// locked and must not call back into the controller.
type View interface {
	StatusChanged(status Status)
	// ErrorChanged reports the user-visible error; "" clears it.
	ErrorChanged(message string)
	TranscriptAppended(msg domain.TranscriptMessage)
	SpeakingChanged(speaking bool)
	CallStarted(callID, joinURL string)
	Navigate(path string)
}

// Deps are the collaborators of a controller.
type Deps struct {
	Transport  voice.Transport
	Permission PermissionRequester
	Submitter  FeedbackSubmitter
	View       View

	// WorkflowID is the hosted workflow run by generate-mode calls.
	WorkflowID string
	// Assistant is the interviewer run by feedback-mode calls.
	Assistant *voice.Assistant
	// SubmitTimeout bounds the feedback submission round trip.
	SubmitTimeout time.Duration
}

// State is a point-in-time copy of the controller state.
type State struct {
	Status     Status
	Error      string
	Speaking   bool
	Transcript []domain.TranscriptMessage
}

// Controller drives one call session. It owns its transport handle and its
// transcript.
type Controller struct {
	session Session
	deps    Deps
	sub     *voice.Subscription

	mu         sync.Mutex
	status     Status
	errMsg     string
	speaking   bool
	transcript []domain.TranscriptMessage
	closed     bool
	completing bool
	// stopped is closed when the stop issued on the last error edge returned.
	stopped chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

// NewController validates session and subscribes to the transport.
func NewController(session Session, deps Deps) (*Controller, error) {
	if _, err := domain.ParseMode(string(session.Mode)); err != nil {
		return nil, err
	}
	if deps.Transport == nil || deps.Permission == nil || deps.View == nil {
		return nil, fmt.Errorf("transport, permission requester and view are required")
	}
	switch session.Mode {
	case domain.ModeGenerate:
		if deps.WorkflowID == "" {
			return nil, fmt.Errorf("generate mode requires a workflow id")
		}
	case domain.ModeFeedback:
		if session.InterviewID == "" {
			return nil, fmt.Errorf("feedback mode requires an interview id")
		}
		if deps.Submitter == nil {
			return nil, fmt.Errorf("feedback mode requires a submitter")
		}
		if deps.Assistant == nil {
			deps.Assistant = voice.Interviewer()
		}
	}
	if deps.SubmitTimeout <= 0 {
		deps.SubmitTimeout = defaultSubmitTimeout
	}

	c := &Controller{
		session: session,
		deps:    deps,
		status:  StatusInactive,
		done:    make(chan struct{}),
	}
	c.sub = deps.Transport.Subscribe(c.handleEvent)
	return c, nil
}

// StartCall runs the call setup: permission, then transport start. It is only
// valid from INACTIVE; concurrent calls are rejected by status, not queued.
func (c *Controller) StartCall(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.status {
	case StatusInactive:
	case StatusFinished:
		c.mu.Unlock()
		return ErrSessionFinished
	default:
		c.mu.Unlock()
		return ErrCallInProgress
	}
	c.setStatus(StatusRequestingPermission)
	c.setError("")
	c.mu.Unlock()

	if err := c.deps.Permission.RequestMicrophone(ctx); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.status == StatusRequestingPermission && !c.closed {
			c.setError(MsgPermissionRequired)
			c.setStatus(StatusInactive)
		}
		slog.Info("Microphone permission denied", "user_id", c.session.UserID, "error", err)
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	c.mu.Lock()
	if c.closed || c.status != StatusRequestingPermission {
		c.mu.Unlock()
		return ErrCallAborted
	}
	c.setStatus(StatusConnecting)
	target, vars := c.target()
	pending := c.stopped
	c.mu.Unlock()

	err := awaitStop(ctx, pending)
	if err == nil && pending != nil {
		c.mu.Lock()
		aborted := c.closed || c.status != StatusConnecting
		c.mu.Unlock()
		if aborted {
			return ErrCallAborted
		}
	}
	if err == nil {
		err = c.deps.Transport.Start(ctx, target, vars)
	}
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.status == StatusConnecting && !c.closed {
			c.setError(MsgStartFailed)
			c.setStatus(StatusInactive)
		}
		slog.Warn("Call failed to start", "user_id", c.session.UserID, "mode", c.session.Mode, "error", err)
		return fmt.Errorf("start call: %w", err)
	}
	return nil
}

// EndCall forces the session to FINISHED and asks the transport to stop.
// The state change does not wait for the transport to acknowledge.
func (c *Controller) EndCall() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.status.InFlight() {
		c.mu.Unlock()
		return ErrNoActiveCall
	}
	c.setError("")
	c.finishLocked()
	c.mu.Unlock()

	c.stopTransport("end call")
	return nil
}

// Close tears down the transport subscription and stops a call in flight.
// A pending completion effect still runs; its view updates are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	inFlight := c.status.InFlight()
	completing := c.completing
	c.mu.Unlock()

	c.sub.Close()
	if inFlight {
		c.stopTransport("close")
	}
	if !completing {
		c.doneOnce.Do(func() { close(c.done) })
	}
}

// Done is closed once the completion effect has run, or on Close when the
// session never finished.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Status:     c.status,
		Error:      c.errMsg,
		Speaking:   c.speaking,
		Transcript: slices.Clone(c.transcript),
	}
}

// Session returns the session the controller was built for.
func (c *Controller) Session() Session {
	return c.session
}

func (c *Controller) target() (voice.Target, map[string]string) {
	if c.session.Mode == domain.ModeGenerate {
		return voice.Target{WorkflowID: c.deps.WorkflowID}, map[string]string{
			"username": c.session.UserName,
			"userid":   c.session.UserID,
		}
	}
	return voice.Target{Assistant: c.deps.Assistant}, map[string]string{
		voice.QuestionsVariable: voice.FormatQuestions(c.session.Questions),
	}
}

func (c *Controller) handleEvent(ev voice.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Events racing an unacknowledged stop land here and are dropped.
	if c.closed || c.status == StatusFinished {
		return
	}

	switch ev.Type {
	case voice.EventCallStart:
		if c.status != StatusConnecting {
			return
		}
		c.setError("")
		c.setStatus(StatusActive)
		c.deps.View.CallStarted(ev.CallID, ev.JoinURL)

	case voice.EventCallEnd:
		switch c.status {
		case StatusActive:
			c.finishLocked()
		case StatusConnecting:
			c.failLocked(MsgConnectionError, errors.New("call ended before it started"))
		}

	case voice.EventMessage:
		if !c.connected() || !ev.Message.IsFinalTranscript() {
			return
		}
		if !ev.Message.Role.Valid() {
			slog.Warn("Dropping transcript with unknown role", "role", ev.Message.Role)
			return
		}
		msg := domain.TranscriptMessage{Role: ev.Message.Role, Content: ev.Message.Transcript}
		c.transcript = append(c.transcript, msg)
		c.deps.View.TranscriptAppended(msg)

	case voice.EventSpeechStart:
		if c.connected() {
			c.setSpeaking(true)
		}

	case voice.EventSpeechEnd:
		c.setSpeaking(false)

	case voice.EventError:
		if c.status == StatusConnecting || c.status == StatusActive {
			c.failLocked(MsgConnectionError, ev.Err)
		}
	}
}

// connected reports whether transport events belong to the current attempt.
// Events arriving after an error edge come from an abandoned call.
func (c *Controller) connected() bool {
	return c.status == StatusConnecting || c.status == StatusActive
}

// failLocked takes the error edge back to INACTIVE and releases the handle.
// The next StartCall waits for this stop so it cannot reach the new call.
func (c *Controller) failLocked(msg string, cause error) {
	slog.Warn("Call connection error", "user_id", c.session.UserID, "call_status", c.status, "error", cause)
	c.setSpeaking(false)
	c.setError(msg)
	c.setStatus(StatusInactive)

	stopped := make(chan struct{})
	c.stopped = stopped
	go func() {
		defer close(stopped)
		c.stopTransport("connection error")
	}()
}

func awaitStop(ctx context.Context, stopped <-chan struct{}) error {
	if stopped == nil {
		return nil
	}
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finishLocked enters FINISHED and launches the completion effect exactly once.
func (c *Controller) finishLocked() {
	c.setSpeaking(false)
	c.setStatus(StatusFinished)
	if c.completing {
		return
	}
	c.completing = true
	transcript := slices.Clone(c.transcript)
	go c.complete(transcript)
}

func (c *Controller) complete(transcript []domain.TranscriptMessage) {
	defer c.doneOnce.Do(func() { close(c.done) })

	if c.session.Mode == domain.ModeGenerate {
		c.navigate(HomePath)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.deps.SubmitTimeout)
	defer cancel()

	result, err := c.deps.Submitter.CreateFeedback(ctx, domain.FeedbackRequest{
		InterviewID: c.session.InterviewID,
		UserID:      c.session.UserID,
		Transcript:  transcript,
		FeedbackID:  c.session.FeedbackID,
	})
	switch {
	case err != nil:
		slog.Error("Feedback submission failed", "user_id", c.session.UserID, "interview_id", c.session.InterviewID, "error", err)
		c.reportError(MsgFeedbackError)
		c.navigate(HomePath)
	case !result.Success || result.FeedbackID == "":
		c.reportError(MsgFeedbackFailed)
		c.navigate(HomePath)
	default:
		slog.Info("Feedback saved", "user_id", c.session.UserID, "interview_id", c.session.InterviewID, "feedback_id", result.FeedbackID)
		c.navigate(FeedbackPath(c.session.InterviewID))
	}
}

func (c *Controller) stopTransport(reason string) {
	if err := c.deps.Transport.Stop(); err != nil {
		slog.Warn("Transport stop failed", "reason", reason, "error", err)
	}
}

func (c *Controller) navigate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.deps.View.Navigate(path)
}

func (c *Controller) reportError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
	if c.closed {
		return
	}
	c.deps.View.ErrorChanged(msg)
}

func (c *Controller) setStatus(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.deps.View.StatusChanged(s)
}

func (c *Controller) setError(msg string) {
	if c.errMsg == msg {
		return
	}
	c.errMsg = msg
	c.deps.View.ErrorChanged(msg)
}

func (c *Controller) setSpeaking(speaking bool) {
	if c.speaking == speaking {
		return
	}
	c.speaking = speaking
	c.deps.View.SpeakingChanged(speaking)
}
