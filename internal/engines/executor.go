package engines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pkg/browser"

	"searchq/internal/config"
	"searchq/internal/logging"
)

// Disposition says where a replayed search should open.
type Disposition string

const (
	DispositionNewTab     Disposition = "NEW_TAB"
	DispositionCurrentTab Disposition = "CURRENT_TAB"
	DispositionNewWindow  Disposition = "NEW_WINDOW"
)

// ErrNoSearchURL indicates the engine is known but has no search_url to open.
var ErrNoSearchURL = errors.New("engine has no search url")

// Request describes one search to perform.
type Request struct {
	Engine      string
	Query       string
	Disposition Disposition
}

// Executor runs a search.
type Executor interface {
	Execute(ctx context.Context, req Request) error
}

// BrowserExecutor opens the engine's search URL in the user's browser.
// Engines without a search URL go to the host searcher, when one is set.
type BrowserExecutor struct {
	registry Registry
	open     func(string) error
	host     Executor
	logger   *slog.Logger
}

// NewBrowserExecutor constructs an executor backed by github.com/pkg/browser.
func NewBrowserExecutor(registry Registry, logger *slog.Logger) *BrowserExecutor {
	return &BrowserExecutor{
		registry: registry,
		open:     browser.OpenURL,
		logger:   logging.NewComponentLogger(logger, "executor"),
	}
}

// WithOpener replaces the function used to open URLs.
func (e *BrowserExecutor) WithOpener(open func(string) error) *BrowserExecutor {
	if open != nil {
		e.open = open
	}
	return e
}

// WithHostSearch routes engines that have no search URL to host, which runs
// them through the browser's own search API.
func (e *BrowserExecutor) WithHostSearch(host Executor) *BrowserExecutor {
	e.host = host
	return e
}

// Execute implements Executor.
func (e *BrowserExecutor) Execute(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	engine, err := Lookup(ctx, e.registry, req.Engine)
	if err != nil {
		return fmt.Errorf("search %q: %w", req.Engine, err)
	}
	disposition := req.Disposition
	if disposition == "" {
		disposition = DispositionNewTab
	}
	if engine.SearchURL == "" {
		if e.host == nil {
			return fmt.Errorf("search %q: %w", req.Engine, ErrNoSearchURL)
		}
		if err := e.host.Execute(ctx, Request{Engine: engine.Name, Query: req.Query, Disposition: disposition}); err != nil {
			return fmt.Errorf("search %q in browser: %w", req.Engine, err)
		}
		e.logger.Info("search handed to browser",
			logging.Engine(engine.Name),
			logging.String("disposition", string(disposition)),
			logging.String(logging.FieldEventType, "search_executed"),
		)
		return nil
	}
	target := BuildURL(engine.SearchURL, req.Query)
	if err := e.open(target); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	e.logger.Info("search opened",
		logging.Engine(engine.Name),
		logging.String("disposition", string(disposition)),
		logging.String(logging.FieldEventType, "search_executed"),
	)
	return nil
}

// BuildURL substitutes the escaped query into the search URL template.
func BuildURL(searchURL, query string) string {
	return strings.ReplaceAll(searchURL, config.SearchTermsPlaceholder, url.QueryEscape(query))
}
