package call

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/ashureev/interviewprep/internal/voice"
	"github.com/gorilla/websocket"
)

// flakyGateway fails the first call with a runtime error frame and keeps
// that socket open; later calls are accepted.
func flakyGateway(t *testing.T) (url string, firstClosed <-chan struct{}) {
	t.Helper()
	var conns atomic.Int32
	closed := make(chan struct{})
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		if conns.Add(1) == 1 {
			_ = conn.WriteJSON(map[string]any{"type": "call-start", "callId": "call-1"})
			_ = conn.WriteJSON(map[string]any{"type": "error", "error": "media failed"})
			_ = conn.WriteJSON(map[string]any{"type": "message", "message": map[string]any{
				"type": "transcript", "transcriptType": "final", "role": "assistant", "transcript": "stale",
			}})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					close(closed)
					return
				}
			}
		}

		_ = conn.WriteJSON(map[string]any{"type": "call-start", "callId": "call-2"})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(data), `"stop"`) {
				_ = conn.WriteJSON(map[string]any{"type": "call-end", "callId": "call-2"})
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), closed
}

func waitForStatus(t *testing.T, ctrl *Controller, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State().Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, last state %+v", want, ctrl.State())
}

func TestRetryAfterGatewayError(t *testing.T) {
	url, firstClosed := flakyGateway(t)

	ctrl, err := NewController(Session{UserName: "Ada", UserID: "u1", Mode: domain.ModeGenerate}, Deps{
		Transport:  voice.NewWSTransport(voice.WSConfig{URL: url}),
		Permission: granted,
		View:       &recordingView{},
		WorkflowID: "wf-1",
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	t.Cleanup(ctrl.Close)

	if err := ctrl.StartCall(context.Background()); err != nil {
		t.Fatalf("first StartCall failed: %v", err)
	}
	waitForStatus(t, ctrl, StatusInactive)
	if got := ctrl.State().Error; got != MsgConnectionError {
		t.Fatalf("expected connection error, got %q", got)
	}

	select {
	case <-firstClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned gateway connection was not closed")
	}

	if err := ctrl.StartCall(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	waitForStatus(t, ctrl, StatusActive)

	st := ctrl.State()
	if st.Error != "" {
		t.Errorf("expected error cleared on retry, got %q", st.Error)
	}
	if n := len(st.Transcript); n != 0 {
		t.Errorf("expected no transcript from the failed call, got %d messages", n)
	}
}
