package daemon

import (
	"context"
	"errors"

	"searchq/internal/api"
	"searchq/internal/metrics"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// View returns the queue arranged for display.
func (d *Daemon) View(ctx context.Context, ordering settings.Ordering) (api.QueueView, error) {
	return d.svc.View(ctx, ordering)
}

// List returns rows in stored order.
func (d *Daemon) List(ctx context.Context) ([]api.QueryRow, error) {
	return d.svc.List(ctx)
}

// Describe fetches one row.
func (d *Daemon) Describe(ctx context.Context, ref api.Ref) (api.QueryRow, error) {
	return d.svc.Describe(ctx, ref)
}

// Settings returns the persisted settings.
func (d *Daemon) Settings(ctx context.Context) (settings.Settings, error) {
	return d.svc.Settings(ctx)
}

// EngineNames lists known engines, reported ones first.
func (d *Daemon) EngineNames(ctx context.Context) ([]string, error) {
	return d.svc.EngineNames(ctx)
}

// Export dumps the queue and settings in the legacy storage layout.
func (d *Daemon) Export(ctx context.Context) (api.LegacyDump, error) {
	return d.svc.Export(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// Add enqueues a query typed by hand.
func (d *Daemon) Add(ctx context.Context, req api.AddRequest) (api.QueryRow, error) {
	return submit(ctx, d, "add", func(ctx context.Context) (api.QueryRow, error) {
		return d.svc.Add(ctx, req)
	})
}

// Append records a captured query. Native hosts call it through ipc.
func (d *Daemon) Append(ctx context.Context, rec queue.Record) (*queue.Record, error) {
	return submit(ctx, d, "append", func(ctx context.Context) (*queue.Record, error) {
		return d.svc.Append(ctx, rec)
	})
}

// Edit changes a record's query or engine tag.
func (d *Daemon) Edit(ctx context.Context, req api.EditRequest) (api.QueryRow, error) {
	return submit(ctx, d, "edit", func(ctx context.Context) (api.QueryRow, error) {
		return d.svc.Edit(ctx, req)
	})
}

// Remove deletes one record.
func (d *Daemon) Remove(ctx context.Context, ref api.Ref) error {
	return d.exec(ctx, "remove", func(ctx context.Context) error {
		return d.svc.Remove(ctx, ref)
	})
}

// Clear empties the queue.
func (d *Daemon) Clear(ctx context.Context) (api.ClearResult, error) {
	return submit(ctx, d, "clear", func(ctx context.Context) (api.ClearResult, error) {
		return d.svc.Clear(ctx)
	})
}

// Search replays a record and, when configured, removes it afterwards.
func (d *Daemon) Search(ctx context.Context, req api.SearchRequest) (api.SearchResult, error) {
	return submit(ctx, d, "search", func(ctx context.Context) (api.SearchResult, error) {
		result, err := d.svc.Search(ctx, req)
		if !errors.Is(err, queue.ErrNotFound) && !errors.Is(err, api.ErrInvalidRef) {
			d.metrics.Search(err == nil)
		}
		return result, err
	})
}

// UpdateSettings applies a partial settings change.
func (d *Daemon) UpdateSettings(ctx context.Context, update settings.Update) (settings.Settings, error) {
	return submit(ctx, d, "settings", func(ctx context.Context) (settings.Settings, error) {
		return d.svc.UpdateSettings(ctx, update)
	})
}

// Import loads a legacy storage dump.
func (d *Daemon) Import(ctx context.Context, dump api.LegacyDump, replace bool) (api.ImportResult, error) {
	return submit(ctx, d, "import", func(ctx context.Context) (api.ImportResult, error) {
		return d.svc.Import(ctx, dump, replace)
	})
}

// ReportEngines records the provider list a browser extension reported.
func (d *Daemon) ReportEngines(names []string) {
	d.catalog.SetReported(names)
}

// ReportWatcher records a native host's watcher counters for /metrics.
func (d *Daemon) ReportWatcher(hostID string, stats api.WatcherStats) {
	d.metrics.ReportWatcher(hostID, metrics.WatcherCounts{
		Intercepted: stats.Intercepted,
		Recorded:    stats.Recorded,
		Duplicates:  stats.Duplicates,
		Failures:    stats.Failures,
	})
}

// ClaimBrowserSearch long-polls for a search a native host should run
// through the browser's search API. It reports false when none arrived.
func (d *Daemon) ClaimBrowserSearch(ctx context.Context) (api.BrowserSearch, bool, error) {
	if !d.running.Load() {
		return api.BrowserSearch{}, false, ErrNotRunning
	}
	search, ok := d.browser.claim(ctx)
	return search, ok, nil
}

// CompleteBrowserSearch delivers the outcome a native host reported for a
// claimed search. message is empty on success.
func (d *Daemon) CompleteBrowserSearch(ticket, message string) bool {
	return d.browser.complete(ticket, message)
}
