package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"searchq/internal/api"
	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/logging"
	"searchq/internal/metrics"
	"searchq/internal/queue"
)

// ErrNotRunning is returned for mutations submitted while the command loop is
// stopped.
var ErrNotRunning = errors.New("daemon not running")

// Option customizes a Daemon.
type Option func(*Daemon)

// WithExecutor replaces the search executor. Tests use it to avoid opening a
// real browser.
func WithExecutor(executor engines.Executor) Option {
	return func(d *Daemon) {
		if executor != nil {
			d.executor = executor
		}
	}
}

// WithMetrics replaces the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) {
		if m != nil {
			d.metrics = m
		}
	}
}

// Daemon owns the queue store and serializes every mutation.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	catalog  *engines.Catalog
	executor engines.Executor
	browser  *browserSearches
	svc      *api.QueueService
	metrics  *metrics.Metrics
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	loopDone  chan struct{}
	startedAt time.Time
	commands  chan command

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

type command struct {
	ctx  context.Context
	op   string
	fn   func(context.Context) error
	done chan error
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	catalog := engines.NewCatalog(cfg.Engines)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		catalog:  catalog,
		metrics:  metrics.New(),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		commands: make(chan command),
		shutdown: make(chan struct{}),
	}
	d.browser = newBrowserSearches(time.Duration(cfg.Watcher.HostReplyTimeout)*time.Second + offerWait)
	d.executor = engines.NewBrowserExecutor(catalog, logger).WithHostSearch(d.browser)
	for _, opt := range opts {
		opt(d)
	}
	d.svc = api.NewQueueService(store, catalog, d.executor, logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the command loop and, when
// paths.api_bind is set, the HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another searchq daemon instance is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(loopCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.cancel = cancel
	d.loopDone = make(chan struct{})
	d.startedAt = time.Now().UTC()
	go d.commandLoop(loopCtx, d.loopDone)

	d.running.Store(true)
	d.refreshQueueLength(loopCtx)
	d.logger.Info("searchq daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts the command loop and HTTP server and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.running.Store(false)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.loopDone != nil {
		<-d.loopDone
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldImpact, "next daemon start may report another instance"),
		)
	}
	d.logger.Info("searchq daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon. The store is owned by the
// caller that opened it.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Running reports whether the command loop is accepting mutations.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// RequestShutdown asks the hosting process to exit.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// ShutdownRequested is closed once RequestShutdown has been called.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// Metrics exposes the daemon's collectors.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// APIAddr returns the HTTP listener address, or "" when the server is off.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status summarizes runtime state.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		DBPath:     d.store.Path(),
		LockPath:   d.lockPath,
		SocketPath: d.cfg.SocketPath(),
		ManagerURL: d.cfg.ManagerURL(),
	}
	d.mu.Lock()
	if !d.startedAt.IsZero() && status.Running {
		status.StartedAt = d.startedAt.Format(time.RFC3339)
	}
	d.mu.Unlock()
	if count, err := d.svc.Count(ctx); err == nil {
		status.Records = count
	}
	if current, err := d.svc.Settings(ctx); err == nil {
		status.Settings = current
	}
	return status
}

func (d *Daemon) commandLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-d.commands:
			cmd.done <- d.run(cmd)
		}
	}
}

func (d *Daemon) run(cmd command) error {
	if err := cmd.ctx.Err(); err != nil {
		return err
	}
	err := cmd.fn(cmd.ctx)
	if err != nil {
		return err
	}
	if cmd.op != "" {
		d.metrics.Mutation(cmd.op)
	}
	d.refreshQueueLength(cmd.ctx)
	return nil
}

// exec runs fn on the command loop and waits for it to finish or for ctx to
// end. fn still completes if the caller gives up after it was dequeued.
func (d *Daemon) exec(ctx context.Context, op string, fn func(context.Context) error) error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	d.mu.Lock()
	loopDone := d.loopDone
	d.mu.Unlock()

	cmd := command{ctx: ctx, op: op, fn: fn, done: make(chan error, 1)}
	select {
	case d.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-loopDone:
		return ErrNotRunning
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func submit[T any](ctx context.Context, d *Daemon, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := d.exec(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (d *Daemon) refreshQueueLength(ctx context.Context) {
	count, err := d.svc.Count(ctx)
	if err != nil {
		d.logger.Debug("queue length refresh failed", logging.Error(err))
		return
	}
	d.metrics.SetQueueLength(count)
}
