package nativehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"searchq/internal/nativemsg"
)

var (
	// ErrReplyTimeout indicates the browser did not answer a host call in time.
	ErrReplyTimeout = errors.New("browser did not reply in time")
	// ErrHostClosed indicates the messaging channel closed while a call was pending.
	ErrHostClosed = errors.New("native host closed")
)

// pendingCalls correlates host-initiated requests with browser replies.
type pendingCalls struct {
	timeout time.Duration

	mu     sync.Mutex
	calls  map[string]chan nativemsg.Reply
	closed bool
}

func newPendingCalls(timeout time.Duration) *pendingCalls {
	return &pendingCalls{timeout: timeout, calls: make(map[string]chan nativemsg.Reply)}
}

func (p *pendingCalls) register() (string, chan nativemsg.Reply, error) {
	id := uuid.NewString()
	ch := make(chan nativemsg.Reply, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", nil, ErrHostClosed
	}
	p.calls[id] = ch
	return id, ch, nil
}

func (p *pendingCalls) forget(id string) {
	p.mu.Lock()
	delete(p.calls, id)
	p.mu.Unlock()
}

// resolve delivers a reply. It reports false for unknown or expired ids.
func (p *pendingCalls) resolve(reply nativemsg.Reply) bool {
	p.mu.Lock()
	ch, ok := p.calls[reply.ID]
	if ok {
		delete(p.calls, reply.ID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- reply
	return true
}

// closeAll fails every outstanding call and rejects new ones.
func (p *pendingCalls) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, ch := range p.calls {
		close(ch)
		delete(p.calls, id)
	}
}

func (p *pendingCalls) wait(ctx context.Context, method string, ch chan nativemsg.Reply) (json.RawMessage, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", method, ErrReplyTimeout)
	case reply, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: %w", method, ErrHostClosed)
		}
		if !reply.OK {
			msg := reply.Error
			if msg == "" {
				msg = "browser reported failure"
			}
			return nil, fmt.Errorf("%s: %s", method, msg)
		}
		return reply.Result, nil
	}
}
