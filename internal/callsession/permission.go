package callsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	errPermissionTimeout = errors.New("permission request timed out")
	errPermissionDenied  = errors.New("permission denied by browser")
)

type permissionAnswer struct {
	granted bool
	reason  string
}

// browserPermission asks the browser for microphone access and waits for
// the matching permission frame.
type browserPermission struct {
	out     *outboundWriter
	timeout time.Duration

	mu      sync.Mutex
	pending string
	answer  chan permissionAnswer
}

func newBrowserPermission(out *outboundWriter, timeout time.Duration) *browserPermission {
	return &browserPermission{out: out, timeout: timeout}
}

// RequestMicrophone implements call.PermissionRequester.
func (p *browserPermission) RequestMicrophone(ctx context.Context) error {
	id := uuid.NewString()
	answer := make(chan permissionAnswer, 1)

	p.mu.Lock()
	p.pending = id
	p.answer = answer
	p.mu.Unlock()
	defer p.clear(id)

	p.out.Send(serverFrame{Type: framePermissionRequest, ID: id})

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	select {
	case a := <-answer:
		if a.granted {
			return nil
		}
		if a.reason != "" {
			return fmt.Errorf("%w: %s", errPermissionDenied, a.reason)
		}
		return errPermissionDenied
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errPermissionTimeout
		}
		return ctx.Err()
	}
}

// Resolve delivers the browser's answer. Answers for unknown or stale
// requests are ignored; an empty id matches the pending request.
func (p *browserPermission) Resolve(id string, granted bool, reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.answer == nil || (id != "" && id != p.pending) {
		return false
	}
	p.answer <- permissionAnswer{granted: granted, reason: reason}
	p.answer = nil
	p.pending = ""
	return true
}

func (p *browserPermission) clear(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == id {
		p.pending = ""
		p.answer = nil
	}
}
