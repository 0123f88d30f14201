package watcher

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/logging"
	"searchq/internal/queue"
)

// NavigationEvent is a committed navigation reported by the browser.
type NavigationEvent struct {
	URL            string `json:"url"`
	TabID          int    `json:"tabId"`
	TransitionType string `json:"transitionType"`
}

// Decision tells the browser whether to cancel the navigation.
type Decision struct {
	Cancel bool `json:"cancel"`
}

// Recorder appends captured queries to the queue.
type Recorder interface {
	Append(ctx context.Context, rec queue.Record) (*queue.Record, error)
}

// Injector runs a script in a browser tab.
type Injector interface {
	Inject(ctx context.Context, tabID int, code, runAt string) error
}

// State is the watcher's registration state.
type State int

const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "inactive"
}

// Options tune which navigations count as searches.
type Options struct {
	TransitionTypes []string
	QueryParam      string
	InjectCode      string
	InjectTiming    string
	DedupWindow     time.Duration
	Now             func() time.Time
}

// OptionsFromConfig maps the [watcher] section onto Options.
func OptionsFromConfig(cfg config.Watcher) Options {
	return Options{
		TransitionTypes: cfg.TransitionTypes,
		QueryParam:      cfg.QueryParam,
		InjectCode:      cfg.InjectCode,
		InjectTiming:    cfg.InjectTiming,
		DedupWindow:     time.Duration(cfg.DedupWindowSeconds) * time.Second,
	}
}

// Stats counts what the watcher has seen since construction.
type Stats struct {
	Intercepted int64 `json:"intercepted"`
	Recorded    int64 `json:"recorded"`
	Duplicates  int64 `json:"duplicates"`
	Failures    int64 `json:"failures"`
}

type dedupKey struct {
	tabID int
	url   string
}

// Watcher filters navigation events and records searches.
type Watcher struct {
	recorder Recorder
	injector Injector
	registry engines.Registry
	logger   *slog.Logger

	eligible   map[string]struct{}
	queryParam string
	injectCode string
	injectAt   string
	window     time.Duration
	now        func() time.Time

	mu     sync.Mutex
	state  State
	recent map[dedupKey]time.Time
	stats  Stats
}

// New constructs an inactive watcher. Call SetEnabled(true) to start
// intercepting.
func New(opts Options, recorder Recorder, injector Injector, registry engines.Registry, logger *slog.Logger) *Watcher {
	eligible := make(map[string]struct{}, len(opts.TransitionTypes))
	for _, tt := range opts.TransitionTypes {
		if tt = strings.ToLower(strings.TrimSpace(tt)); tt != "" {
			eligible[tt] = struct{}{}
		}
	}
	if len(eligible) == 0 {
		eligible[config.TransitionGenerated] = struct{}{}
	}
	param := strings.TrimSpace(opts.QueryParam)
	if param == "" {
		param = "q"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		recorder:   recorder,
		injector:   injector,
		registry:   registry,
		logger:     logging.NewComponentLogger(logger, "watcher"),
		eligible:   eligible,
		queryParam: param,
		injectCode: opts.InjectCode,
		injectAt:   opts.InjectTiming,
		window:     opts.DedupWindow,
		now:        now,
		state:      StateInactive,
		recent:     make(map[dedupKey]time.Time),
	}
}

// SetEnabled moves the watcher to Active or Inactive. Repeating the current
// state is a no-op; the return value reports whether the state changed.
func (w *Watcher) SetEnabled(enabled bool) bool {
	target := StateInactive
	if enabled {
		target = StateActive
	}
	w.mu.Lock()
	if w.state == target {
		w.mu.Unlock()
		return false
	}
	w.state = target
	if target == StateInactive {
		w.recent = make(map[dedupKey]time.Time)
	}
	w.mu.Unlock()

	w.logger.Info("watcher state changed",
		logging.String("state", target.String()),
		logging.String(logging.FieldEventType, "watcher_state"),
	)
	return true
}

// State returns the current registration state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// HandleCommitted inspects one committed navigation.
func (w *Watcher) HandleCommitted(ctx context.Context, evt NavigationEvent) Decision {
	if w.State() != StateActive {
		return Decision{}
	}
	if _, ok := w.eligible[strings.ToLower(strings.TrimSpace(evt.TransitionType))]; !ok {
		return Decision{}
	}

	ctx = logging.WithTabID(ctx, evt.TabID)
	logger := logging.WithContext(ctx, w.logger)

	parsed, err := url.Parse(evt.URL)
	if err != nil || parsed.Scheme == "" || parsed.Hostname() == "" {
		if err == nil {
			err = errMissingHost
		}
		logging.WarnWithContext(logger, "navigation url unparseable; passing through", "navigation_malformed",
			logging.String("url", evt.URL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the browser reported a URL without scheme or host"),
			logging.String(logging.FieldImpact, "navigation was not intercepted"),
		)
		return Decision{}
	}

	values := parsed.Query()
	if !values.Has(w.queryParam) {
		return Decision{}
	}
	query := norm.NFC.String(values.Get(w.queryParam))
	hostname := parsed.Hostname()

	duplicate := w.markSeen(evt.TabID, evt.URL)
	if duplicate {
		logger.Debug("duplicate commit suppressed",
			logging.String("host", hostname),
			logging.String(logging.FieldEventType, "navigation_duplicate"),
		)
	} else {
		w.record(ctx, logger, query, hostname)
	}

	w.inject(ctx, logger, evt.TabID)
	return Decision{Cancel: true}
}

func (w *Watcher) record(ctx context.Context, logger *slog.Logger, query, hostname string) {
	engine, err := engines.ResolveWith(ctx, w.registry, hostname)
	if err != nil {
		logging.WarnWithContext(logger, "engine registry unavailable; tagging with hostname", "engine_registry_failed",
			logging.String("host", hostname),
			logging.Error(err),
			logging.String(logging.FieldImpact, "query is tagged with the hostname instead of an engine name"),
		)
	}

	rec, err := w.recorder.Append(ctx, queue.Record{
		Query:        query,
		SearchEngine: engine,
		Timestamp:    w.now().UnixMilli(),
	})
	if err != nil {
		w.bump(func(s *Stats) { s.Failures++ })
		logging.ErrorWithContext(logger, "query capture failed", "query_record_failed",
			logging.Engine(engine),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the searchq database is writable"),
		)
		return
	}
	w.bump(func(s *Stats) { s.Recorded++ })
	logger.Info("query captured",
		logging.RecordID(rec.ID),
		logging.Engine(engine),
		logging.QueryRunes(query),
		logging.String(logging.FieldEventType, "query_captured"),
	)
}

func (w *Watcher) inject(ctx context.Context, logger *slog.Logger, tabID int) {
	if w.injector == nil || strings.TrimSpace(w.injectCode) == "" {
		return
	}
	if err := w.injector.Inject(ctx, tabID, w.injectCode, w.injectAt); err != nil {
		logging.WarnWithContext(logger, "halt script injection failed", "inject_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the tab may have closed or forbids script injection"),
			logging.String(logging.FieldImpact, "the search page may briefly load before the navigation is cancelled"),
		)
	}
}

// markSeen counts an interception and reports whether the same tab committed
// the same URL within the dedup window.
func (w *Watcher) markSeen(tabID int, rawURL string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Intercepted++
	if w.window <= 0 {
		return false
	}
	now := w.now()
	for key, seen := range w.recent {
		if now.Sub(seen) >= w.window {
			delete(w.recent, key)
		}
	}
	key := dedupKey{tabID: tabID, url: rawURL}
	if _, ok := w.recent[key]; ok {
		w.stats.Duplicates++
		return true
	}
	w.recent[key] = now
	return false
}

func (w *Watcher) bump(fn func(*Stats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}
