package callsession

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
)

// ConversationLogConfig controls NDJSON call logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Conversation log event types.
const (
	LogEventStatus     = "status"
	LogEventTranscript = "transcript"
	LogEventCallStart  = "call_start"
	LogEventError      = "error"
	LogEventNavigate   = "navigate"
)

// ConversationLogEvent is one line of a call log.
type ConversationLogEvent struct {
	Time        time.Time `json:"time"`
	UserID      string    `json:"user_id"`
	CallID      string    `json:"call_id"`
	InterviewID string    `json:"interview_id,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	EventType   string    `json:"event_type"`
	Role        string    `json:"role,omitempty"`
	Content     string    `json:"content,omitempty"`
}

// ConversationLogger appends call events to dir/<user>/<call>.ndjson from a
// single background writer. Log never blocks; events are dropped when the
// queue is full.
type ConversationLogger struct {
	dir    string
	events chan ConversationLogEvent
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewConversationLogger returns nil, nil when logging is disabled. A nil
// *ConversationLogger is safe to use.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (*ConversationLogger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("conversation log dir is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &ConversationLogger{
		dir:    cfg.Dir,
		events: make(chan ConversationLogEvent, cfg.QueueSize),
		logger: logger,
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log queues an event.
func (l *ConversationLogger) Log(ev ConversationLogEvent) {
	if l == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.events <- ev:
	default:
		l.logger.Warn("Conversation log queue full, dropping event",
			"user_id", ev.UserID,
			"call_id", ev.CallID,
			"event_type", ev.EventType,
		)
	}
}

// Close flushes queued events and stops the writer.
func (l *ConversationLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *ConversationLogger) run() {
	defer l.wg.Done()

	for ev := range l.events {
		path := filepath.Join(l.dir, safePathSegment(ev.UserID), safePathSegment(ev.CallID)+".ndjson")
		if err := appendLine(path, ev); err != nil {
			l.logger.Warn("Failed to write conversation log", "path", path, "error", err)
		}
	}
}

func appendLine(path string, ev ConversationLogEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path segments are sanitized
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// safePathSegment keeps letters, digits, '-' and '_'.
func safePathSegment(s string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	if clean == "" {
		return "unknown"
	}
	return clean
}
