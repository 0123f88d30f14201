package daemonctl

import (
	"context"
	"errors"
	"os"
	"time"

	"searchq/internal/api"
	"searchq/internal/config"
	"searchq/internal/ipc"
	"searchq/internal/preflight"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// offlineReadTimeout bounds reading queue stats straight from the database.
const offlineReadTimeout = 2 * time.Second

// StatusLine is one labelled row of `searchq status` output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// StatusSnapshot combines daemon state with offline fallbacks and preflight
// checks.
type StatusSnapshot struct {
	Daemon api.DaemonStatus `json:"daemon"`
	Checks []StatusLine     `json:"checks"`
}

// BuildStatusSnapshot asks the daemon for its status. When it does not
// answer, queue size and settings are read from the database directly.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (StatusSnapshot, error) {
	if cfg == nil {
		return StatusSnapshot{}, errors.New("configuration not available")
	}
	snapshot := StatusSnapshot{Daemon: api.DaemonStatus{
		DBPath:     cfg.DatabasePath(),
		LockPath:   cfg.LockPath(),
		SocketPath: cfg.SocketPath(),
		ManagerURL: cfg.ManagerURL(),
		Settings:   settings.Defaults(),
	}}

	if status, ok := remoteStatus(ctx, cfg.SocketPath()); ok {
		snapshot.Daemon = status
	} else {
		readOffline(ctx, cfg.DatabasePath(), &snapshot.Daemon)
	}

	snapshot.Checks = BuildSystemChecks(ctx, cfg, snapshot.Daemon.Running)
	return snapshot, nil
}

func remoteStatus(ctx context.Context, socketPath string) (api.DaemonStatus, bool) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return api.DaemonStatus{}, false
	}
	defer client.Close()
	callCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	status, err := client.Status(callCtx)
	if err != nil || !status.Running {
		return api.DaemonStatus{}, false
	}
	return *status, true
}

func readOffline(ctx context.Context, dbPath string, status *api.DaemonStatus) {
	if _, err := os.Stat(dbPath); err != nil {
		return
	}
	store, err := queue.OpenPath(dbPath)
	if err != nil {
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, offlineReadTimeout)
	defer cancel()
	if count, err := store.Count(ctx); err == nil {
		status.Records = count
	}
	if current, err := settings.Load(ctx, store); err == nil {
		status.Settings = current
	}
}

// BuildSystemChecks leads with the daemon state and follows with preflight
// results. The bind address is only probed while the daemon is down, since a
// running daemon owns it.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, daemonRunning bool) []StatusLine {
	lines := make([]StatusLine, 0, 8)
	if daemonRunning {
		lines = append(lines, StatusLine{Label: "searchq", Severity: "ok", Detail: "Running"})
	} else {
		lines = append(lines, StatusLine{Label: "searchq", Severity: "warn", Detail: "Not running (run `searchq start`)"})
	}
	for _, result := range preflight.RunAll(ctx, cfg, preflight.Options{CheckBind: !daemonRunning}) {
		lines = append(lines, StatusLine{Label: result.Name, Severity: result.Severity(), Detail: result.Detail})
	}
	return lines
}
