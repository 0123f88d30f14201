package ipc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"searchq/internal/api"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	call := c.client.Go(serviceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		return decodeError(call.Error)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start requests the daemon to start its command loop.
func (c *Client) Start(ctx context.Context) (*StartResponse, error) {
	var resp StartResponse
	if err := c.call(ctx, "Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon process to shut down.
func (c *Client) Stop(ctx context.Context) (*StopResponse, error) {
	var resp StopResponse
	if err := c.call(ctx, "Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, "Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueView fetches the display view.
func (c *Client) QueueView(ctx context.Context, ordering settings.Ordering) (api.QueueView, error) {
	var resp api.QueueView
	err := c.call(ctx, "QueueView", QueueViewRequest{Ordering: string(ordering)}, &resp)
	return resp, err
}

// QueueList lists rows in stored order.
func (c *Client) QueueList(ctx context.Context) ([]api.QueryRow, error) {
	var resp QueueListResponse
	if err := c.call(ctx, "QueueList", QueueListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// QueueDescribe fetches one row.
func (c *Client) QueueDescribe(ctx context.Context, ref api.Ref) (api.QueryRow, error) {
	var resp api.QueryRow
	err := c.call(ctx, "QueueDescribe", QueueDescribeRequest{Ref: ref}, &resp)
	return resp, err
}

// QueueAdd enqueues a query.
func (c *Client) QueueAdd(ctx context.Context, req api.AddRequest) (api.QueryRow, error) {
	var resp api.QueryRow
	err := c.call(ctx, "QueueAdd", req, &resp)
	return resp, err
}

// QueueAppend records a captured query.
func (c *Client) QueueAppend(ctx context.Context, rec queue.Record) (*queue.Record, error) {
	var resp QueueAppendResponse
	if err := c.call(ctx, "QueueAppend", QueueAppendRequest{Record: rec}, &resp); err != nil {
		return nil, err
	}
	return &resp.Record, nil
}

// QueueEdit changes a row.
func (c *Client) QueueEdit(ctx context.Context, req api.EditRequest) (api.QueryRow, error) {
	var resp api.QueryRow
	err := c.call(ctx, "QueueEdit", req, &resp)
	return resp, err
}

// QueueRemove deletes a row.
func (c *Client) QueueRemove(ctx context.Context, ref api.Ref) error {
	var resp QueueRemoveResponse
	return c.call(ctx, "QueueRemove", QueueRemoveRequest{Ref: ref}, &resp)
}

// QueueClear empties the queue.
func (c *Client) QueueClear(ctx context.Context) (api.ClearResult, error) {
	var resp api.ClearResult
	err := c.call(ctx, "QueueClear", QueueClearRequest{}, &resp)
	return resp, err
}

// QueueSearch replays a row.
func (c *Client) QueueSearch(ctx context.Context, req api.SearchRequest) (api.SearchResult, error) {
	var resp api.SearchResult
	err := c.call(ctx, "QueueSearch", req, &resp)
	return resp, err
}

// Settings fetches the persisted settings.
func (c *Client) Settings(ctx context.Context) (settings.Settings, error) {
	var resp SettingsResponse
	err := c.call(ctx, "Settings", SettingsRequest{}, &resp)
	return resp, err
}

// SettingsUpdate applies a partial settings change.
func (c *Client) SettingsUpdate(ctx context.Context, update settings.Update) (settings.Settings, error) {
	var resp SettingsResponse
	err := c.call(ctx, "SettingsUpdate", update, &resp)
	return resp, err
}

// Engines lists known engine names.
func (c *Client) Engines(ctx context.Context) ([]string, error) {
	var resp EnginesResponse
	if err := c.call(ctx, "Engines", EnginesRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Engines, nil
}

// ReportEngines forwards the provider list a browser extension sent.
func (c *Client) ReportEngines(ctx context.Context, names []string) error {
	return c.call(ctx, "EnginesReport", EnginesReportRequest{Names: names}, &Ack{})
}

// ReportWatcher forwards a native host's watcher counters.
func (c *Client) ReportWatcher(ctx context.Context, hostID string, stats api.WatcherStats) error {
	return c.call(ctx, "WatcherReport", WatcherReportRequest{HostID: hostID, Stats: stats}, &Ack{})
}

// ClaimSearch long-polls for a search the browser should run. It reports
// false when none arrived before the daemon's poll window closed.
func (c *Client) ClaimSearch(ctx context.Context, hostID string) (api.BrowserSearch, bool, error) {
	var resp SearchClaimResponse
	if err := c.call(ctx, "SearchClaim", SearchClaimRequest{HostID: hostID}, &resp); err != nil {
		return api.BrowserSearch{}, false, err
	}
	return resp.Search, resp.Found, nil
}

// CompleteSearch reports the outcome of a claimed search. message is empty
// on success.
func (c *Client) CompleteSearch(ctx context.Context, ticket, message string) error {
	return c.call(ctx, "SearchComplete", SearchCompleteRequest{Ticket: ticket, Error: message}, &Ack{})
}

// Export dumps queue and settings.
func (c *Client) Export(ctx context.Context) (api.LegacyDump, error) {
	var resp api.LegacyDump
	err := c.call(ctx, "Export", ExportRequest{}, &resp)
	return resp, err
}

// Import loads a legacy dump.
func (c *Client) Import(ctx context.Context, dump api.LegacyDump, replace bool) (api.ImportResult, error) {
	var resp api.ImportResult
	err := c.call(ctx, "Import", ImportRequest{Dump: dump, Replace: replace}, &resp)
	return resp, err
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth(ctx context.Context) (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.call(ctx, "DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
