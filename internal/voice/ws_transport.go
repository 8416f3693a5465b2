package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultStopGrace        = 5 * time.Second
	writeTimeout            = 5 * time.Second
)

// ErrStopped is returned by Start when Stop was called before the call was accepted.
var ErrStopped = errors.New("voice session stopped")

// WSConfig configures the gateway client.
type WSConfig struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
	// StopGrace bounds how long the connection stays open after Stop
	// while waiting for the gateway to end the call.
	StopGrace time.Duration
}

// WSDialer creates WSTransport handles sharing one configuration.
type WSDialer struct {
	cfg WSConfig
}

// NewWSDialer creates a dialer for the gateway at cfg.URL.
func NewWSDialer(cfg WSConfig) *WSDialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &WSDialer{cfg: cfg}
}

// NewTransport returns a fresh, unshared handle.
func (d *WSDialer) NewTransport() Transport {
	return NewWSTransport(d.cfg)
}

// WSTransport speaks the gateway's JSON control protocol over a WebSocket.
// Frames of one call are decoded by a single reader, so listeners observe
// events in gateway order.
type WSTransport struct {
	cfg     WSConfig
	dialer  *websocket.Dialer
	emitter Emitter

	mu            sync.Mutex
	conn          *websocket.Conn
	gen           uint64
	active        bool
	stopRequested bool

	writeMu sync.Mutex
}

// NewWSTransport creates a single gateway handle.
func NewWSTransport(cfg WSConfig) *WSTransport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &WSTransport{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
	}
}

// clientFrame is sent to the gateway.
type clientFrame struct {
	Type           string            `json:"type"`
	WorkflowID     string            `json:"workflowId,omitempty"`
	Assistant      *Assistant        `json:"assistant,omitempty"`
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

// serverFrame is received from the gateway.
type serverFrame struct {
	Type    string   `json:"type"`
	CallID  string   `json:"callId,omitempty"`
	JoinURL string   `json:"joinUrl,omitempty"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Subscribe registers a listener for this handle's events.
func (t *WSTransport) Subscribe(l Listener) *Subscription {
	return t.emitter.Subscribe(l)
}

// Start dials the gateway, requests the call and waits for the first
// gateway frame. A gateway error frame fails the start.
func (t *WSTransport) Start(ctx context.Context, target Target, variables map[string]string) error {
	if (target.WorkflowID == "") == (target.Assistant == nil) {
		return fmt.Errorf("target must set exactly one of workflow id or assistant")
	}

	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return ErrSessionActive
	}
	t.gen++
	gen := t.gen
	t.active = true
	t.stopRequested = false
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		t.reset(gen, nil)
		return err
	}

	t.mu.Lock()
	if t.stopRequested {
		t.mu.Unlock()
		t.reset(gen, conn)
		return ErrStopped
	}
	t.conn = conn
	t.mu.Unlock()

	start := clientFrame{
		Type:           "start",
		WorkflowID:     target.WorkflowID,
		Assistant:      target.Assistant,
		VariableValues: variables,
	}
	if err := t.write(conn, start); err != nil {
		t.reset(gen, conn)
		return fmt.Errorf("send start frame: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		stopped := t.isStopRequested(gen)
		t.reset(gen, conn)
		if stopped {
			return ErrStopped
		}
		return fmt.Errorf("read first gateway frame: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	frame, err := decodeFrame(data)
	if err != nil {
		t.reset(gen, conn)
		return err
	}
	if frame.Type == string(EventError) {
		t.reset(gen, conn)
		return fmt.Errorf("gateway rejected call: %s", frame.Error)
	}

	if ev, ok := eventFor(frame); ok {
		if ev.Type == EventCallEnd {
			t.reset(gen, conn)
			t.emitter.Emit(ev)
			return nil
		}
		t.emitter.Emit(ev)
	}

	go t.readLoop(gen, conn)
	return nil
}

// Stop asks the gateway to end the call and returns immediately.
func (t *WSTransport) Stop() error {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return nil
	}
	t.stopRequested = true
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		// Still dialing; Start observes stopRequested.
		return nil
	}

	time.AfterFunc(t.cfg.StopGrace, func() { _ = conn.Close() })
	if err := t.write(conn, clientFrame{Type: "stop"}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send stop frame: %w", err)
	}
	return nil
}

func (t *WSTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := make(http.Header)
	if t.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, resp, err := t.dialer.DialContext(dialCtx, t.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial voice gateway (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial voice gateway: %w", err)
	}
	return conn, nil
}

func (t *WSTransport) write(conn *websocket.Conn, frame clientFrame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}

func (t *WSTransport) isStopRequested(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen == gen && t.stopRequested
}

// reset ends session gen and closes conn if non-nil. A later session on the
// same handle is left untouched.
func (t *WSTransport) reset(gen uint64, conn *websocket.Conn) {
	t.mu.Lock()
	if t.gen == gen {
		t.conn = nil
		t.active = false
		t.stopRequested = false
	}
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// readLoop delivers the frames of session gen. Call-end and error frames end
// the session: the handle is released before the event is emitted, so a
// listener may Start again at once and sees no further frames from conn.
func (t *WSTransport) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			stopped := t.isStopRequested(gen)
			t.reset(gen, conn)
			if stopped || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.emitter.Emit(Event{Type: EventCallEnd})
				return
			}
			t.emitter.Emit(Event{Type: EventError, Err: fmt.Errorf("voice gateway connection lost: %w", err)})
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			slog.Warn("Dropping malformed gateway frame", "error", err)
			continue
		}
		ev, ok := eventFor(frame)
		if !ok {
			continue
		}
		if ev.Type == EventCallEnd || ev.Type == EventError {
			t.reset(gen, conn)
			t.emitter.Emit(ev)
			return
		}
		t.emitter.Emit(ev)
	}
}

// eventFor maps a gateway frame to a transport event.
func eventFor(frame serverFrame) (Event, bool) {
	switch EventType(frame.Type) {
	case EventCallStart:
		return Event{Type: EventCallStart, CallID: frame.CallID, JoinURL: frame.JoinURL}, true
	case EventCallEnd:
		return Event{Type: EventCallEnd, CallID: frame.CallID}, true
	case EventSpeechStart, EventSpeechEnd:
		return Event{Type: EventType(frame.Type)}, true
	case EventMessage:
		if frame.Message == nil {
			return Event{}, false
		}
		return Event{Type: EventMessage, Message: frame.Message}, true
	case EventError:
		msg := strings.TrimSpace(frame.Error)
		if msg == "" {
			msg = "unknown gateway error"
		}
		return Event{Type: EventError, Err: errors.New(msg)}, true
	default:
		slog.Debug("Ignoring gateway frame", "type", frame.Type)
		return Event{}, false
	}
}

func decodeFrame(data []byte) (serverFrame, error) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return serverFrame{}, fmt.Errorf("decode gateway frame: %w", err)
	}
	return frame, nil
}
