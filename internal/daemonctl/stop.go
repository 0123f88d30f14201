package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"searchq/internal/config"
	"searchq/internal/ipc"
)

// StopResult reports how the daemon went away.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult pairs the stop and start halves of a restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate asks the daemon to shut down over IPC and waits up to
// gracePeriod for its lock to be released. A daemon that still holds the
// lock afterwards is killed through its pid file.
func StopAndTerminate(ctx context.Context, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}
	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	var result StopResult
	if status, err := client.Status(callCtx); err == nil {
		result.PID = status.PID
	}
	resp, err := client.Stop(callCtx)
	cancel()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result.StopAcknowledged = resp.Stopped

	if waitErr := waitForRelease(ctx, cfg, gracePeriod); waitErr == nil {
		return result, nil
	}

	killed, err := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), result.PID)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(cfg.SocketPath())
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// waitForRelease waits until the socket stops answering and the daemon lock
// is free.
func waitForRelease(ctx context.Context, cfg *config.Config, timeout time.Duration) error {
	return poll(ctx, timeout, func() (bool, error) {
		if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
			_ = client.Close()
			return false, errors.New("daemon socket still answering")
		}
		held, err := LockHeld(cfg.LockPath())
		if err != nil {
			return false, err
		}
		if held {
			return false, errors.New("daemon lock still held")
		}
		return true, nil
	})
}

// ForceKillProcess SIGKILLs the daemon named by pidPath, or fallbackPID when
// the file is missing, and removes the pid file. When lockPath is set and
// the lock is already free there is nothing left to kill.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	if lockPath != "" {
		if held, err := LockHeld(lockPath); err == nil && !held {
			_ = os.Remove(pidPath)
			return 0, nil
		}
	}

	pid, err := readPIDFile(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, cfg.SocketPath(), executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{WasRunning: stopErr == nil, Stop: stopResult, Start: startResult}, nil
}
