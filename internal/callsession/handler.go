package callsession

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/interviewprep/internal/auth"
	"github.com/ashureev/interviewprep/internal/call"
	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/ashureev/interviewprep/internal/interview"
	"github.com/ashureev/interviewprep/internal/voice"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// InterviewGetter looks up the interview a feedback-mode call runs against.
type InterviewGetter interface {
	Get(ctx context.Context, id string) (*domain.Interview, error)
}

// Options configures the call socket handler.
type Options struct {
	WorkflowID        string
	Assistant         *voice.Assistant
	PermissionTimeout time.Duration
	SubmitTimeout     time.Duration
	QueueSize         int
	AllowedOrigin     string
	IsDev             bool
}

// Handler serves /ws/call: one call-session controller per socket.
type Handler struct {
	interviews InterviewGetter
	submitter  call.FeedbackSubmitter
	dialer     voice.Dialer
	sm         *SessionManager
	convLog    *ConversationLogger
	opts       Options
}

// NewHandler creates a call socket handler. convLog may be nil.
func NewHandler(interviews InterviewGetter, submitter call.FeedbackSubmitter, dialer voice.Dialer, sm *SessionManager, convLog *ConversationLogger, opts Options) *Handler {
	return &Handler{
		interviews: interviews,
		submitter:  submitter,
		dialer:     dialer,
		sm:         sm,
		convLog:    convLog,
		opts:       opts,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	mode, err := domain.ParseMode(q.Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	session := call.Session{
		UserName:    user.Name,
		UserID:      user.ID,
		InterviewID: q.Get("interview_id"),
		FeedbackID:  q.Get("feedback_id"),
		Mode:        mode,
	}
	if mode == domain.ModeFeedback {
		iv, err := h.interviews.Get(r.Context(), session.InterviewID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, interview.ErrNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, "interview not found", status)
			return
		}
		session.Questions = iv.Questions
	}

	tabID := q.Get("tab_id")
	if tabID == "" {
		tabID = uuid.NewString()
	}
	slog.Info("Call socket request", "user_id", user.ID, "tab_id", tabID, "mode", mode, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", user.ID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "call session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", user.ID)
		}
	}()

	if h.sm.Active(user.ID, tabID) {
		slog.Info("Replacing call socket", "user_id", user.ID, "tab_id", tabID)
	}
	h.sm.Register(user.ID, tabID, ws)
	defer h.sm.Unregister(user.ID, tabID, ws)
	slog.Debug("Call sockets open", "user_id", user.ID, "count", h.sm.Count(user.ID))

	h.serve(r.Context(), ws, session, tabID)
}

// serve runs one call session over an accepted socket until it closes.
func (h *Handler) serve(parent context.Context, ws *websocket.Conn, session call.Session, tabID string) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := newOutboundWriter(ws, h.opts.QueueSize, nil)
	defer out.Close()

	perm := newBrowserPermission(out, h.opts.PermissionTimeout)
	view := &socketView{
		out: out,
		log: h.convLog,
		logKey: ConversationLogEvent{
			UserID:      session.UserID,
			CallID:      tabID + "-" + uuid.NewString()[:8],
			InterviewID: session.InterviewID,
			Mode:        string(session.Mode),
		},
	}

	ctrl, err := call.NewController(session, call.Deps{
		Transport:     h.dialer.NewTransport(),
		Permission:    perm,
		Submitter:     h.submitter,
		View:          view,
		WorkflowID:    h.opts.WorkflowID,
		Assistant:     h.opts.Assistant,
		SubmitTimeout: h.opts.SubmitTimeout,
	})
	if err != nil {
		slog.Warn("Failed to create call controller", "user_id", session.UserID, "error", err)
		msg := err.Error()
		out.Send(serverFrame{Type: frameError, Message: &msg})
		return
	}

	var starts sync.WaitGroup
	defer func() {
		cancel()
		ctrl.Close()
		starts.Wait()
	}()

	out.Send(serverFrame{Type: frameStatus, Status: ctrl.State().Status})
	h.readLoop(ctx, ws, ctrl, perm, out, &starts)
	slog.Info("Call session ended", "user_id", session.UserID, "tab_id", tabID, "call_status", ctrl.State().Status)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, ctrl *call.Controller, perm *browserPermission, out *outboundWriter, starts *sync.WaitGroup) {
	userID := ctrl.Session().UserID
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Debug("Ignoring malformed client frame", "user_id", userID, "error", err)
			continue
		}

		switch f.Type {
		case frameStart:
			starts.Add(1)
			go func() {
				defer starts.Done()
				if err := ctrl.StartCall(ctx); err != nil {
					slog.Debug("Start call rejected", "user_id", userID, "error", err)
				}
			}()
		case frameEnd:
			if err := ctrl.EndCall(); err != nil {
				slog.Debug("End call rejected", "user_id", userID, "error", err)
			}
		case framePermission:
			if !perm.Resolve(f.ID, f.Granted, f.Error) {
				slog.Debug("Ignoring stale permission answer", "user_id", userID, "id", f.ID)
			}
		case framePing:
			out.Send(serverFrame{Type: framePong})
		default:
			slog.Debug("Ignoring unknown client frame", "user_id", userID, "type", f.Type)
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.opts.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.opts.AllowedOrigin == "" || h.opts.AllowedOrigin == "*" {
		return true
	}
	if origin == h.opts.AllowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.opts.AllowedOrigin)
	return false
}
