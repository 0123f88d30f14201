package ipc

import (
	"searchq/internal/api"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// serviceName is the JSON-RPC receiver name.
const serviceName = "Searchq"

// StartRequest asks the daemon to start its command loop.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the daemon status snapshot.
type StatusResponse = api.DaemonStatus

// QueueViewRequest fetches the display view. An empty Ordering uses the
// stored setting.
type QueueViewRequest struct {
	Ordering string `json:"ordering"`
}

// QueueListRequest lists rows in stored order.
type QueueListRequest struct{}

// QueueListResponse contains queue rows.
type QueueListResponse struct {
	Rows []api.QueryRow `json:"rows"`
}

// QueueDescribeRequest fetches one row.
type QueueDescribeRequest struct {
	Ref api.Ref `json:"ref"`
}

// QueueAppendRequest records a captured query.
type QueueAppendRequest struct {
	Record queue.Record `json:"record"`
}

// QueueAppendResponse returns the stored record with its id and version.
type QueueAppendResponse struct {
	Record queue.Record `json:"record"`
}

// QueueRemoveRequest deletes one row.
type QueueRemoveRequest struct {
	Ref api.Ref `json:"ref"`
}

// QueueRemoveResponse acknowledges a removal.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueClearRequest empties the queue.
type QueueClearRequest struct{}

// SettingsRequest fetches the persisted settings.
type SettingsRequest struct{}

// EnginesRequest lists known engines.
type EnginesRequest struct{}

// EnginesResponse lists engine names, reported ones first.
type EnginesResponse struct {
	Engines []string `json:"engines"`
}

// EnginesReportRequest carries the provider list a browser extension sent.
type EnginesReportRequest struct {
	Names []string `json:"names"`
}

// WatcherReportRequest carries a native host's watcher counters.
type WatcherReportRequest struct {
	HostID string           `json:"host_id"`
	Stats  api.WatcherStats `json:"stats"`
}

// SearchClaimRequest long-polls for a search the browser should run.
type SearchClaimRequest struct {
	HostID string `json:"host_id"`
}

// SearchClaimResponse carries a claimed search when Found is set.
type SearchClaimResponse struct {
	Found  bool              `json:"found"`
	Search api.BrowserSearch `json:"search"`
}

// SearchCompleteRequest reports the outcome of a claimed search. Error is
// empty on success.
type SearchCompleteRequest struct {
	Ticket string `json:"ticket"`
	Error  string `json:"error,omitempty"`
}

// Ack is the empty response for fire-and-forget reports.
type Ack struct{}

// ExportRequest dumps queue and settings.
type ExportRequest struct{}

// ImportRequest loads a legacy dump.
type ImportRequest struct {
	Dump    api.LegacyDump `json:"dump"`
	Replace bool           `json:"replace"`
}

// DatabaseHealthRequest fetches database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse mirrors queue.DatabaseHealth.
type DatabaseHealthResponse = queue.DatabaseHealth

// SettingsResponse mirrors settings.Settings.
type SettingsResponse = settings.Settings
