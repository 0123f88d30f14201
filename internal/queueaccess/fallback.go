package queueaccess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/flock"

	"searchq/internal/ipc"
	"searchq/internal/queue"
)

// ErrDaemonUnreachable means the daemon holds the queue lock but its socket
// did not answer. Writing to the database behind its back would break the
// daemon's ordering guarantees, so no store fallback is offered.
var ErrDaemonUnreachable = errors.New("daemon owns the queue but its socket is unreachable")

// Session is one queue access handle plus its cleanup.
type Session struct {
	Access Access
	// Remote is true when the daemon serves the session over IPC.
	Remote bool
	close  func() error
}

// Close releases the IPC connection or the store.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback talks to the daemon when it answers and opens the
// database directly otherwise. When opts.LockPath names the daemon lock and
// that lock is held, the dial error is returned as ErrDaemonUnreachable
// instead of opening the store.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*queue.Store, error),
	opts StoreOptions,
) (Session, error) {
	var dialErr error
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{Access: NewIPCAccess(client), Remote: true, close: client.Close}, nil
		}
		dialErr = err
	}

	if held, err := daemonLockHeld(opts.LockPath); err != nil {
		return Session{}, err
	} else if held {
		return Session{}, fmt.Errorf("%w: %v", ErrDaemonUnreachable, dialErr)
	}

	if openStore == nil {
		return Session{}, errors.New("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{Access: NewStoreAccess(store, opts), close: store.Close}, nil
}

func daemonLockHeld(path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	_ = probe.Unlock()
	return false, nil
}
