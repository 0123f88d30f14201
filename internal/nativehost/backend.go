package nativehost

import (
	"context"
	"errors"

	"searchq/internal/api"
	"searchq/internal/ipc"
	"searchq/internal/queue"
	"searchq/internal/queueaccess"
	"searchq/internal/settings"
)

// Backend routes host calls to the daemon when it runs and to the database
// otherwise. Every call opens a fresh session so a daemon started or stopped
// while the browser is open is picked up.
type Backend struct {
	Open func() (queueaccess.Session, error)
	Dial func() (*ipc.Client, error)
}

// Append records a captured query.
func (b Backend) Append(ctx context.Context, rec queue.Record) (*queue.Record, error) {
	session, err := b.open()
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return session.Access.Append(ctx, rec)
}

// Settings loads the current toggles.
func (b Backend) Settings(ctx context.Context) (settings.Settings, error) {
	session, err := b.open()
	if err != nil {
		return settings.Settings{}, err
	}
	defer session.Close()
	return session.Access.Settings(ctx)
}

// ReportEngines forwards the browser's provider list when a daemon is running.
func (b Backend) ReportEngines(ctx context.Context, names []string) error {
	client, err := b.dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.ReportEngines(ctx, names)
}

// ReportWatcher forwards watcher counters when a daemon is running.
func (b Backend) ReportWatcher(ctx context.Context, hostID string, stats api.WatcherStats) error {
	client, err := b.dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.ReportWatcher(ctx, hostID, stats)
}

// ClaimSearch long-polls the daemon for a search to run in the browser.
func (b Backend) ClaimSearch(ctx context.Context, hostID string) (api.BrowserSearch, bool, error) {
	client, err := b.dial()
	if err != nil {
		return api.BrowserSearch{}, false, err
	}
	defer client.Close()
	return client.ClaimSearch(ctx, hostID)
}

// CompleteSearch reports a claimed search's outcome to the daemon.
func (b Backend) CompleteSearch(ctx context.Context, ticket, message string) error {
	client, err := b.dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.CompleteSearch(ctx, ticket, message)
}

func (b Backend) open() (queueaccess.Session, error) {
	if b.Open == nil {
		return queueaccess.Session{}, errors.New("native host has no queue access configured")
	}
	return b.Open()
}

func (b Backend) dial() (*ipc.Client, error) {
	if b.Dial == nil {
		return nil, errors.New("native host has no daemon socket configured")
	}
	return b.Dial()
}
