package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"searchq/internal/config"
	"searchq/internal/daemon"
	"searchq/internal/ipc"
	"searchq/internal/logging"
	"searchq/internal/preflight"
	"searchq/internal/queue"
)

// currentLogName always points at the newest daemon run log.
const currentLogName = "searchq.log"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Stdout mirrors log output to the terminal in addition to the run log.
	Stdout bool
}

// process holds everything one daemon run owns. Resources are released in
// reverse order of acquisition.
type process struct {
	cfg     *config.Config
	logger  *slog.Logger
	daemon  *daemon.Daemon
	cleanup []func()
}

func (p *process) onRelease(fn func()) { p.cleanup = append(p.cleanup, fn) }

func (p *process) release() {
	for i := len(p.cleanup) - 1; i >= 0; i-- {
		p.cleanup[i]()
	}
}

// Run starts the searchq daemon and blocks until a signal arrives or a
// client requests shutdown over IPC.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, logPath, err := openRunLog(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.PruneLogs(logger, cfg, logPath)
	logEnvironment(ctx, logger, cfg)

	p := &process{cfg: cfg, logger: logger}
	defer p.release()
	if err := p.start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("searchq daemon shutting down", logging.String("reason", "signal"))
	case <-p.daemon.ShutdownRequested():
		logger.Info("searchq daemon shutting down", logging.String("reason", "stop requested"))
	}
	return nil
}

// start brings the daemon up. The lock is taken by daemon.Start before the
// socket is touched so a second instance cannot steal a live daemon's
// socket.
func (p *process) start(ctx context.Context) error {
	store, err := queue.Open(p.cfg)
	if err != nil {
		p.logger.Error("open queue store", logging.Error(err))
		return err
	}
	p.onRelease(func() { _ = store.Close() })

	d, err := daemon.New(p.cfg, store, p.logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	p.daemon = d
	p.onRelease(func() { _ = d.Close() })

	if err := d.Start(ctx); err != nil {
		logging.ErrorWithContext(p.logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run searchq status to check for another instance"),
			logging.String(logging.FieldImpact, "queue is not served"),
		)
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := p.cfg.PIDPath()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	p.onRelease(func() { _ = os.Remove(pidPath) })

	server, err := ipc.NewServer(ctx, p.cfg.SocketPath(), d, p.logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	p.onRelease(server.Close)
	server.Serve()

	if addr := d.APIAddr(); addr != "" {
		p.logger.Info("management page available",
			logging.String("url", "http://"+addr+"/"),
			logging.String(logging.FieldEventType, "api_listening"))
	}
	return nil
}

// openRunLog creates searchq-<run id>.log, repoints searchq.log at it and
// returns a logger writing there (and to the terminal when requested).
func openRunLog(cfg *config.Config, opts Options) (*slog.Logger, string, error) {
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, "searchq-"+runID+".log")

	outputs := []string{logPath}
	var errorOutputs []string
	if opts.Stdout {
		outputs = append(outputs, "stdout")
		errorOutputs = []string{"stderr"}
	}
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errorOutputs,
		Development:      opts.Development,
	})
	if err != nil {
		return nil, "", err
	}
	if err := pointCurrentLog(cfg.Paths.LogDir, logPath); err != nil {
		logging.WarnWithContext(logger, "unable to update current log link", "log_link_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, currentLogName+" may point at an older run"),
			logging.String(logging.FieldErrorHint, "check permissions on the log directory"))
	}
	return logger, logPath, nil
}

// pointCurrentLog replaces searchq.log with a symlink to target, falling
// back to a hard link where symlinks are unavailable.
func pointCurrentLog(logDir, target string) error {
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err != nil {
		if linkErr := os.Link(target, current); linkErr != nil {
			return fmt.Errorf("link log pointer: %w", linkErr)
		}
	}
	return nil
}

// logEnvironment records the preflight results once at startup. Failures are
// logged but never block the daemon.
func logEnvironment(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg, preflight.Options{})
	for _, result := range results {
		attrs := logging.Args(
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_check"),
		)
		switch result.Severity() {
		case "ok":
			logger.Debug("preflight check passed", attrs...)
		case "warn":
			logger.Warn("preflight check warning", attrs...)
		default:
			logger.Error("preflight check failed", attrs...)
		}
	}
	logger.Info("environment snapshot",
		logging.String(logging.FieldEventType, "environment_snapshot"),
		logging.Int("engines", len(cfg.Engines)),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Int("failed_checks", len(preflight.Failed(results))),
	)
}
