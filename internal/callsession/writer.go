package callsession

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultQueueSize = 64
	writeTimeout     = 5 * time.Second
	closeWaitTimeout = 5 * time.Second
)

// frameConn is the write side of a websocket.Conn.
type frameConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
}

// outboundWriter serializes frames to the socket from a background goroutine
// so the controller never blocks on a slow client. When the queue is full the
// oldest frame is dropped.
type outboundWriter struct {
	conn   frameConn
	queue  chan serverFrame
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

func newOutboundWriter(conn frameConn, queueSize int, logger *slog.Logger) *outboundWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &outboundWriter{
		conn:   conn,
		queue:  make(chan serverFrame, queueSize),
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
		logger: logger,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Send queues a frame without blocking.
func (w *outboundWriter) Send(f serverFrame) {
	select {
	case <-w.stop:
		return
	default:
	}
	if w.ctx.Err() != nil {
		return
	}

	select {
	case w.queue <- f:
		return
	default:
	}

	w.logger.Warn("Outbound queue full, dropping oldest frame", "queue_len", len(w.queue), "frame_type", f.Type)
	select {
	case <-w.queue:
	default:
	}
	select {
	case w.queue <- f:
	default:
		w.logger.Warn("Failed to queue frame after backpressure", "frame_type", f.Type)
	}
}

func (w *outboundWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case f := <-w.queue:
			if !w.deliver(f) {
				return
			}
		case <-w.stop:
			for {
				select {
				case f := <-w.queue:
					if !w.deliver(f) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (w *outboundWriter) deliver(f serverFrame) bool {
	if err := w.write(f); err != nil {
		w.logger.Debug("WebSocket write error", "frame_type", f.Type, "error", err)
		w.cancel()
		return false
	}
	return true
}

func (w *outboundWriter) write(f serverFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(w.ctx, writeTimeout)
	defer cancel()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

// Close flushes queued frames, bounded by closeWaitTimeout, and stops the
// writer.
func (w *outboundWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.stop)

		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(closeWaitTimeout):
			w.logger.Warn("Outbound writer shutdown timeout", "queue_remaining", len(w.queue))
		}
		w.cancel()
	})
}
