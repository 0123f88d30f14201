package nativehost

import (
	"context"
	"time"

	"searchq/internal/api"
	"searchq/internal/engines"
	"searchq/internal/logging"
	"searchq/internal/nativemsg"
)

// claimTimeout bounds one long poll against the daemon, which answers
// sooner on its own.
const claimTimeout = 40 * time.Second

type searchParams struct {
	Query       string `json:"query"`
	Engine      string `json:"engine,omitempty"`
	Disposition string `json:"disposition"`
}

// Execute implements engines.Executor by asking the browser to run the
// search with its own search API.
func (h *Host) Execute(ctx context.Context, req engines.Request) error {
	disposition := req.Disposition
	if disposition == "" {
		disposition = engines.DispositionNewTab
	}
	_, err := h.call(ctx, nativemsg.TypeSearch, searchParams{
		Query:       req.Query,
		Engine:      req.Engine,
		Disposition: string(disposition),
	})
	return err
}

// searchLoop polls the daemon for browser searches until ctx ends. A
// missing daemon is retried every refresh interval.
func (h *Host) searchLoop(ctx context.Context) {
	for {
		claimCtx, cancel := context.WithTimeout(ctx, claimTimeout)
		search, found, err := h.searches.ClaimSearch(claimCtx, h.id)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			h.logger.Debug("browser search poll failed", logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.refresh):
			}
			continue
		}
		if found {
			h.runSearch(ctx, search)
		}
	}
}

func (h *Host) runSearch(ctx context.Context, search api.BrowserSearch) {
	err := h.Execute(ctx, engines.Request{
		Engine:      search.Engine,
		Query:       search.Query,
		Disposition: engines.Disposition(search.Disposition),
	})
	var message string
	if err != nil {
		message = err.Error()
		logging.WarnWithContext(h.logger, "browser search failed", "browser_search_failed",
			logging.Engine(search.Engine),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the queued query was not searched"),
			logging.String(logging.FieldErrorHint, "check that the extension shim handles search requests"))
	} else {
		h.logger.Info("browser search opened",
			logging.Engine(search.Engine),
			logging.String("disposition", search.Disposition),
			logging.String(logging.FieldEventType, "browser_search_executed"))
	}

	reportCtx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	if err := h.searches.CompleteSearch(reportCtx, search.Ticket, message); err != nil {
		h.logger.Debug("search outcome not delivered", logging.Error(err))
	}
}
