package ipc

import (
	"errors"
	"net/rpc"
	"strings"

	"searchq/internal/api"
	"searchq/internal/daemon"
	"searchq/internal/engines"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// remoteSentinels are the errors callers test for with errors.Is after a
// round trip.
var remoteSentinels = []error{
	queue.ErrNotFound,
	queue.ErrVersionConflict,
	settings.ErrInvalidOrdering,
	api.ErrEmptyQuery,
	api.ErrInvalidRef,
	api.ErrUnsupportedFormat,
	engines.ErrUnknownEngine,
	engines.ErrNoSearchURL,
	daemon.ErrNotRunning,
	daemon.ErrNoBrowserHost,
	daemon.ErrBrowserSearchTimeout,
}

// RemoteError is an error returned by the daemon.
type RemoteError struct {
	Message  string
	sentinel error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.sentinel }

func decodeError(err error) error {
	if err == nil {
		return nil
	}
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	msg := string(serverErr)
	for _, sentinel := range remoteSentinels {
		if strings.Contains(msg, sentinel.Error()) {
			return &RemoteError{Message: msg, sentinel: sentinel}
		}
	}
	return &RemoteError{Message: msg}
}
