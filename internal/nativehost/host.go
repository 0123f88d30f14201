package nativehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"searchq/internal/api"
	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/logging"
	"searchq/internal/nativemsg"
	"searchq/internal/settings"
	"searchq/internal/watcher"
)

const (
	// reportTimeout bounds best-effort calls to the daemon.
	reportTimeout = 2 * time.Second

	fallbackRefresh      = 5 * time.Second
	fallbackReplyTimeout = 5 * time.Second
)

// Store is the queue access the host needs.
type Store interface {
	watcher.Recorder
	Settings(ctx context.Context) (settings.Settings, error)
}

// Reporter forwards host state to a running daemon.
type Reporter interface {
	ReportEngines(ctx context.Context, names []string) error
	ReportWatcher(ctx context.Context, hostID string, stats api.WatcherStats) error
}

// SearchSource hands out searches the daemon queued for the browser's
// search API.
type SearchSource interface {
	ClaimSearch(ctx context.Context, hostID string) (api.BrowserSearch, bool, error)
	CompleteSearch(ctx context.Context, ticket, message string) error
}

// Options wires a Host to its collaborators. Reporter and Searches may be
// nil.
type Options struct {
	Store    Store
	Reporter Reporter
	Searches SearchSource
	Now      func() time.Time
}

// Host serves one browser connection.
type Host struct {
	cfg      *config.Config
	id       string
	reader   *nativemsg.Reader
	writer   *nativemsg.Writer
	store    Store
	reporter Reporter
	searches SearchSource
	catalog  *engines.Catalog
	watcher  *watcher.Watcher
	pending  *pendingCalls
	logger   *slog.Logger
	refresh  time.Duration

	mu          sync.Mutex
	settingsErr bool
}

// New constructs a host reading frames from in and writing frames to out.
func New(cfg *config.Config, in io.Reader, out io.Writer, opts Options, logger *slog.Logger) (*Host, error) {
	if cfg == nil || opts.Store == nil {
		return nil, errors.New("native host requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "nativehost")

	refresh := time.Duration(cfg.Watcher.SettingsRefreshSeconds) * time.Second
	if refresh <= 0 {
		refresh = fallbackRefresh
	}
	replyTimeout := time.Duration(cfg.Watcher.HostReplyTimeout) * time.Second
	if replyTimeout <= 0 {
		replyTimeout = fallbackReplyTimeout
	}

	h := &Host{
		cfg:      cfg,
		id:       uuid.NewString(),
		reader:   nativemsg.NewReader(in),
		writer:   nativemsg.NewWriter(out),
		store:    opts.Store,
		reporter: opts.Reporter,
		searches: opts.Searches,
		catalog:  engines.NewCatalog(cfg.Engines),
		pending:  newPendingCalls(replyTimeout),
		logger:   logger,
		refresh:  refresh,
	}
	watcherOpts := watcher.OptionsFromConfig(cfg.Watcher)
	watcherOpts.Now = opts.Now
	h.watcher = watcher.New(watcherOpts, opts.Store, h, h.catalog, logger)
	return h, nil
}

// ID identifies this host in daemon reports.
func (h *Host) ID() string {
	return h.id
}

// Run serves messages until the browser closes the input stream or ctx is
// canceled.
func (h *Host) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		h.pending.closeAll()
		wg.Wait()
	}()

	h.logger.Info("native host started",
		logging.String("host_id", h.id),
		logging.String(logging.FieldEventType, "native_host_started"))

	h.syncEnabled(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.refreshLoop(ctx)
	}()
	if h.searches != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.searchLoop(ctx)
		}()
	}

	msgs := make(chan []byte)
	readErr := make(chan error, 1)
	// The reader goroutine may stay blocked on stdin after cancellation; the
	// process exits right after Run returns.
	go h.readLoop(ctx, msgs, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				h.logger.Info("browser closed the messaging channel",
					logging.String(logging.FieldEventType, "native_host_eof"))
				return nil
			}
			return fmt.Errorf("read native message: %w", err)
		case msg := <-msgs:
			if nativemsg.Type(msg) == nativemsg.TypeReply {
				h.handleReply(msg)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.dispatch(ctx, msg)
			}()
		}
	}
}

func (h *Host) readLoop(ctx context.Context, msgs chan<- []byte, readErr chan<- error) {
	for {
		msg, err := h.reader.Read()
		if errors.Is(err, nativemsg.ErrInvalidJSON) {
			logging.WarnWithContext(h.logger, "discarding malformed message", "native_message_invalid",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the message was ignored"),
				logging.String(logging.FieldErrorHint, "check the extension shim version"))
			h.send(nativemsg.Error{Type: nativemsg.TypeError, Message: err.Error()})
			continue
		}
		if err != nil {
			readErr <- err
			return
		}
		select {
		case msgs <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Host) dispatch(ctx context.Context, msg []byte) {
	msgType := nativemsg.Type(msg)
	switch msgType {
	case nativemsg.TypeNavigation:
		h.handleNavigation(ctx, msg)
	case nativemsg.TypeEngines:
		h.handleEngines(ctx, msg)
	case nativemsg.TypeInstalled:
		h.handleInstalled(ctx)
	case nativemsg.TypePing:
		h.send(nativemsg.Pong{Type: nativemsg.TypePong, ID: nativemsg.ID(msg)})
	default:
		h.logger.Debug("unsupported message type", logging.String("type", msgType))
		h.send(nativemsg.Error{
			Type:    nativemsg.TypeError,
			ID:      nativemsg.ID(msg),
			Message: fmt.Sprintf("unsupported message type %q", msgType),
		})
	}
}

func (h *Host) handleNavigation(ctx context.Context, msg []byte) {
	var nav nativemsg.Navigation
	if err := json.Unmarshal(msg, &nav); err != nil {
		logging.WarnWithContext(h.logger, "navigation message undecodable; passing through", "navigation_undecodable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "navigation was not intercepted"))
		h.send(nativemsg.Decision{Type: nativemsg.TypeDecision, ID: nativemsg.ID(msg)})
		return
	}
	h.syncEnabled(ctx)
	decision := h.watcher.HandleCommitted(ctx, watcher.NavigationEvent{
		URL:            nav.URL,
		TabID:          nav.TabID,
		TransitionType: nav.TransitionType,
	})
	h.send(nativemsg.Decision{Type: nativemsg.TypeDecision, ID: nav.ID, Cancel: decision.Cancel})
}

func (h *Host) handleEngines(ctx context.Context, msg []byte) {
	var names []string
	for _, name := range gjson.GetBytes(msg, "engines.#.name").Array() {
		names = append(names, name.String())
	}
	h.catalog.SetReported(names)
	h.logger.Debug("browser engines reported", logging.Int("count", len(names)))
	if h.reporter == nil {
		return
	}
	reportCtx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	if err := h.reporter.ReportEngines(reportCtx, names); err != nil {
		h.logger.Debug("engine report not delivered", logging.Error(err))
	}
}

func (h *Host) handleInstalled(ctx context.Context) {
	if !h.cfg.UI.OpenPinnedTab {
		return
	}
	current, err := h.store.Settings(ctx)
	if err != nil {
		logging.WarnWithContext(h.logger, "settings unavailable; assuming enabled", "settings_load_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "management tab opens even if interception is disabled"))
		current = settings.Defaults()
	}
	if !current.Enabled {
		return
	}
	if err := OpenManager(ctx, h, h.cfg.ManagerPageURL(), h.logger); err != nil {
		logging.WarnWithContext(h.logger, "management tab not opened", "manager_tab_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "open the management page manually"),
			logging.String(logging.FieldErrorHint, "check that the extension shim handles tabs.* requests"))
	}
}

func (h *Host) handleReply(msg []byte) {
	var reply nativemsg.Reply
	if err := json.Unmarshal(msg, &reply); err != nil {
		h.logger.Debug("reply undecodable", logging.Error(err))
		return
	}
	if !h.pending.resolve(reply) {
		h.logger.Debug("reply for unknown or expired call", logging.CorrelationID(reply.ID))
	}
}

func (h *Host) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reportStats(ctx)
		}
	}
}

// syncEnabled applies the stored enabled flag to the watcher. On a read
// failure the watcher keeps its previous state.
func (h *Host) syncEnabled(ctx context.Context) {
	current, err := h.store.Settings(ctx)
	h.mu.Lock()
	wasFailing := h.settingsErr
	h.settingsErr = err != nil
	h.mu.Unlock()
	if err != nil {
		if !wasFailing {
			logging.WarnWithContext(h.logger, "settings read failed", "settings_read_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "watcher keeps its previous state"),
				logging.String(logging.FieldErrorHint, "check that the searchq database is readable"))
		}
		return
	}
	h.watcher.SetEnabled(current.Enabled)
}

func (h *Host) reportStats(ctx context.Context) {
	if h.reporter == nil {
		return
	}
	reportCtx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	if err := h.reporter.ReportWatcher(reportCtx, h.id, api.WatcherStats(h.watcher.Stats())); err != nil {
		h.logger.Debug("watcher report not delivered", logging.Error(err))
	}
}

// Inject asks the browser to run code in a tab. It does not wait for a reply.
func (h *Host) Inject(_ context.Context, tabID int, code, runAt string) error {
	return h.writer.Write(nativemsg.Inject{Type: nativemsg.TypeInject, TabID: tabID, Code: code, RunAt: runAt})
}

func (h *Host) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id, ch, err := h.pending.register()
	if err != nil {
		return nil, err
	}
	defer h.pending.forget(id)
	if err := h.writer.Write(nativemsg.Request{Type: method, ID: id, Params: params}); err != nil {
		return nil, err
	}
	return h.pending.wait(ctx, method, ch)
}

func (h *Host) send(v any) {
	if err := h.writer.Write(v); err != nil {
		logging.ErrorWithContext(h.logger, "write to browser failed", "native_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the browser may have closed the host"))
	}
}
