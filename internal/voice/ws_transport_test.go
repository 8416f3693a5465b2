package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type gatewayScript func(t *testing.T, conn *websocket.Conn, start clientFrame)

func newGateway(t *testing.T, script gatewayScript) (string, <-chan clientFrame) {
	t.Helper()
	starts := make(chan clientFrame, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var start clientFrame
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("read start frame: %v", err)
			return
		}
		starts <- start
		script(t, conn, start)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), starts
}

func collect(tr Transport) (<-chan Event, *Subscription) {
	events := make(chan Event, 32)
	sub := tr.Subscribe(func(ev Event) { events <- ev })
	return events, sub
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func TestWSTransportCallLifecycle(t *testing.T) {
	url, starts := newGateway(t, func(t *testing.T, conn *websocket.Conn, _ clientFrame) {
		frames := []serverFrame{
			{Type: "call-start", CallID: "call-1", JoinURL: "https://join.example/call-1"},
			{Type: "message", Message: &Message{Type: "transcript", TranscriptType: TranscriptPartial, Role: "user", Transcript: "hel"}},
			{Type: "message", Message: &Message{Type: "transcript", TranscriptType: TranscriptFinal, Role: "user", Transcript: "hello"}},
			{Type: "speech-start"},
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				t.Errorf("write frame: %v", err)
				return
			}
		}
		var stop clientFrame
		if err := conn.ReadJSON(&stop); err != nil || stop.Type != "stop" {
			t.Errorf("expected stop frame, got %+v, %v", stop, err)
			return
		}
		_ = conn.WriteJSON(serverFrame{Type: "call-end", CallID: "call-1"})
	})

	tr := NewWSTransport(WSConfig{URL: url, APIKey: "test-key"})
	events, sub := collect(tr)
	defer sub.Close()

	err := tr.Start(context.Background(), Target{WorkflowID: "wf-1"}, map[string]string{"username": "Ada", "userid": "u1"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := <-starts
	if start.Type != "start" || start.WorkflowID != "wf-1" || start.VariableValues["username"] != "Ada" {
		t.Errorf("unexpected start frame: %+v", start)
	}

	ev := nextEvent(t, events)
	if ev.Type != EventCallStart || ev.CallID != "call-1" || ev.JoinURL == "" {
		t.Fatalf("expected call-start, got %+v", ev)
	}
	if ev := nextEvent(t, events); ev.Type != EventMessage || ev.Message.IsFinalTranscript() {
		t.Fatalf("expected partial message, got %+v", ev)
	}
	if ev := nextEvent(t, events); !ev.Message.IsFinalTranscript() || ev.Message.Transcript != "hello" {
		t.Fatalf("expected final message, got %+v", ev)
	}
	if ev := nextEvent(t, events); ev.Type != EventSpeechStart {
		t.Fatalf("expected speech-start, got %+v", ev)
	}

	if err := tr.Start(context.Background(), Target{WorkflowID: "wf-1"}, nil); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive for concurrent start, got %v", err)
	}

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if ev := nextEvent(t, events); ev.Type != EventCallEnd {
		t.Fatalf("expected call-end, got %+v", ev)
	}
}

func TestWSTransportGatewayRejectsStart(t *testing.T) {
	url, _ := newGateway(t, func(t *testing.T, conn *websocket.Conn, _ clientFrame) {
		_ = conn.WriteJSON(serverFrame{Type: "error", Error: "assistant invalid"})
	})

	tr := NewWSTransport(WSConfig{URL: url, APIKey: "test-key"})
	err := tr.Start(context.Background(), Target{Assistant: Interviewer()}, map[string]string{"questions": "- q1"})
	if err == nil || !strings.Contains(err.Error(), "assistant invalid") {
		t.Fatalf("expected gateway rejection, got %v", err)
	}

	// Handle is free again after a failed start.
	err = tr.Start(context.Background(), Target{Assistant: Interviewer()}, nil)
	if errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected handle to be released, got %v", err)
	}
}

func TestWSTransportDialFailure(t *testing.T) {
	tr := NewWSTransport(WSConfig{URL: "ws://127.0.0.1:1/v1/calls", HandshakeTimeout: time.Second})
	if err := tr.Start(context.Background(), Target{WorkflowID: "wf"}, nil); err == nil {
		t.Fatal("expected dial failure")
	}
}

func TestWSTransportUnauthorized(t *testing.T) {
	url, _ := newGateway(t, func(*testing.T, *websocket.Conn, clientFrame) {})
	tr := NewWSTransport(WSConfig{URL: url, APIKey: "wrong"})
	err := tr.Start(context.Background(), Target{WorkflowID: "wf"}, nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 dial failure, got %v", err)
	}
}

func TestWSTransportConnectionLost(t *testing.T) {
	url, _ := newGateway(t, func(t *testing.T, conn *websocket.Conn, _ clientFrame) {
		_ = conn.WriteJSON(serverFrame{Type: "call-start", CallID: "c"})
		_ = conn.UnderlyingConn().Close()
	})

	tr := NewWSTransport(WSConfig{URL: url, APIKey: "test-key"})
	events, sub := collect(tr)
	defer sub.Close()

	if err := tr.Start(context.Background(), Target{WorkflowID: "wf"}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if ev := nextEvent(t, events); ev.Type != EventCallStart {
		t.Fatalf("expected call-start, got %+v", ev)
	}
	ev := nextEvent(t, events)
	if ev.Type != EventError || ev.Err == nil {
		t.Fatalf("expected error event, got %+v", ev)
	}
}

func TestWSTransportErrorFrameReleasesHandle(t *testing.T) {
	var conns atomic.Int32
	firstClosed := make(chan struct{})
	url, _ := newGateway(t, func(t *testing.T, conn *websocket.Conn, _ clientFrame) {
		if conns.Add(1) == 1 {
			_ = conn.WriteJSON(serverFrame{Type: "call-start", CallID: "call-1"})
			_ = conn.WriteJSON(serverFrame{Type: "error", Error: "media failed"})
			_ = conn.WriteJSON(serverFrame{Type: "message", Message: &Message{
				Type: "transcript", TranscriptType: TranscriptFinal, Role: "assistant", Transcript: "stale",
			}})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					close(firstClosed)
					return
				}
			}
		}
		_ = conn.WriteJSON(serverFrame{Type: "call-start", CallID: "call-2"})
		var stop clientFrame
		if err := conn.ReadJSON(&stop); err == nil && stop.Type == "stop" {
			_ = conn.WriteJSON(serverFrame{Type: "call-end", CallID: "call-2"})
		}
	})

	tr := NewWSTransport(WSConfig{URL: url, APIKey: "test-key"})
	events, sub := collect(tr)
	defer sub.Close()

	if err := tr.Start(context.Background(), Target{WorkflowID: "wf"}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if ev := nextEvent(t, events); ev.Type != EventCallStart {
		t.Fatalf("expected call-start, got %+v", ev)
	}
	if ev := nextEvent(t, events); ev.Type != EventError || ev.Err == nil || ev.Err.Error() != "media failed" {
		t.Fatalf("expected gateway error, got %+v", ev)
	}

	if err := tr.Start(context.Background(), Target{WorkflowID: "wf"}, nil); err != nil {
		t.Fatalf("restart after error frame failed: %v", err)
	}
	if ev := nextEvent(t, events); ev.Type != EventCallStart || ev.CallID != "call-2" {
		t.Fatalf("expected call-start of the new call, got %+v", ev)
	}
	select {
	case <-firstClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("first gateway connection was not closed")
	}

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if ev := nextEvent(t, events); ev.Type != EventCallEnd || ev.CallID != "call-2" {
		t.Fatalf("expected call-end of the new call, got %+v", ev)
	}
}

func TestStartRejectsAmbiguousTarget(t *testing.T) {
	tr := NewWSTransport(WSConfig{URL: "ws://unused"})
	if err := tr.Start(context.Background(), Target{}, nil); err == nil {
		t.Error("expected error for empty target")
	}
	if err := tr.Start(context.Background(), Target{WorkflowID: "wf", Assistant: Interviewer()}, nil); err == nil {
		t.Error("expected error for target with both workflow and assistant")
	}
}

func TestStopWithoutCall(t *testing.T) {
	tr := NewWSTransport(WSConfig{URL: "ws://unused"})
	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop on idle handle should be a no-op, got %v", err)
	}
}
