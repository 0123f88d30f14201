package queueaccess

import (
	"context"
	"log/slog"

	"searchq/internal/api"
	"searchq/internal/engines"
	"searchq/internal/ipc"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	View(ctx context.Context, ordering settings.Ordering) (api.QueueView, error)
	List(ctx context.Context) ([]api.QueryRow, error)
	Describe(ctx context.Context, ref api.Ref) (api.QueryRow, error)
	Add(ctx context.Context, req api.AddRequest) (api.QueryRow, error)
	Append(ctx context.Context, rec queue.Record) (*queue.Record, error)
	Edit(ctx context.Context, req api.EditRequest) (api.QueryRow, error)
	Remove(ctx context.Context, ref api.Ref) error
	Clear(ctx context.Context) (api.ClearResult, error)
	Search(ctx context.Context, req api.SearchRequest) (api.SearchResult, error)
	Settings(ctx context.Context) (settings.Settings, error)
	UpdateSettings(ctx context.Context, update settings.Update) (settings.Settings, error)
	Engines(ctx context.Context) ([]string, error)
	Export(ctx context.Context) (api.LegacyDump, error)
	Import(ctx context.Context, dump api.LegacyDump, replace bool) (api.ImportResult, error)
}

// StoreOptions supplies the collaborators direct store access needs to list
// engines and replay searches.
type StoreOptions struct {
	Registry engines.Registry
	Executor engines.Executor
	Logger   *slog.Logger
	// LockPath is the daemon lock probed before falling back to the store.
	LockPath string
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store, opts StoreOptions) Access {
	return &storeAccess{service: api.NewQueueService(store, opts.Registry, opts.Executor, opts.Logger)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) View(ctx context.Context, ordering settings.Ordering) (api.QueueView, error) {
	return a.client.QueueView(ctx, ordering)
}

func (a *ipcAccess) List(ctx context.Context) ([]api.QueryRow, error) {
	return a.client.QueueList(ctx)
}

func (a *ipcAccess) Describe(ctx context.Context, ref api.Ref) (api.QueryRow, error) {
	return a.client.QueueDescribe(ctx, ref)
}

func (a *ipcAccess) Add(ctx context.Context, req api.AddRequest) (api.QueryRow, error) {
	return a.client.QueueAdd(ctx, req)
}

func (a *ipcAccess) Append(ctx context.Context, rec queue.Record) (*queue.Record, error) {
	return a.client.QueueAppend(ctx, rec)
}

func (a *ipcAccess) Edit(ctx context.Context, req api.EditRequest) (api.QueryRow, error) {
	return a.client.QueueEdit(ctx, req)
}

func (a *ipcAccess) Remove(ctx context.Context, ref api.Ref) error {
	return a.client.QueueRemove(ctx, ref)
}

func (a *ipcAccess) Clear(ctx context.Context) (api.ClearResult, error) {
	return a.client.QueueClear(ctx)
}

func (a *ipcAccess) Search(ctx context.Context, req api.SearchRequest) (api.SearchResult, error) {
	return a.client.QueueSearch(ctx, req)
}

func (a *ipcAccess) Settings(ctx context.Context) (settings.Settings, error) {
	return a.client.Settings(ctx)
}

func (a *ipcAccess) UpdateSettings(ctx context.Context, update settings.Update) (settings.Settings, error) {
	return a.client.SettingsUpdate(ctx, update)
}

func (a *ipcAccess) Engines(ctx context.Context) ([]string, error) {
	return a.client.Engines(ctx)
}

func (a *ipcAccess) Export(ctx context.Context) (api.LegacyDump, error) {
	return a.client.Export(ctx)
}

func (a *ipcAccess) Import(ctx context.Context, dump api.LegacyDump, replace bool) (api.ImportResult, error) {
	return a.client.Import(ctx, dump, replace)
}

type storeAccess struct {
	service *api.QueueService
}

func (a *storeAccess) View(ctx context.Context, ordering settings.Ordering) (api.QueueView, error) {
	return a.service.View(ctx, ordering)
}

func (a *storeAccess) List(ctx context.Context) ([]api.QueryRow, error) {
	return a.service.List(ctx)
}

func (a *storeAccess) Describe(ctx context.Context, ref api.Ref) (api.QueryRow, error) {
	return a.service.Describe(ctx, ref)
}

func (a *storeAccess) Add(ctx context.Context, req api.AddRequest) (api.QueryRow, error) {
	return a.service.Add(ctx, req)
}

func (a *storeAccess) Append(ctx context.Context, rec queue.Record) (*queue.Record, error) {
	return a.service.Append(ctx, rec)
}

func (a *storeAccess) Edit(ctx context.Context, req api.EditRequest) (api.QueryRow, error) {
	return a.service.Edit(ctx, req)
}

func (a *storeAccess) Remove(ctx context.Context, ref api.Ref) error {
	return a.service.Remove(ctx, ref)
}

func (a *storeAccess) Clear(ctx context.Context) (api.ClearResult, error) {
	return a.service.Clear(ctx)
}

func (a *storeAccess) Search(ctx context.Context, req api.SearchRequest) (api.SearchResult, error) {
	return a.service.Search(ctx, req)
}

func (a *storeAccess) Settings(ctx context.Context) (settings.Settings, error) {
	return a.service.Settings(ctx)
}

func (a *storeAccess) UpdateSettings(ctx context.Context, update settings.Update) (settings.Settings, error) {
	return a.service.UpdateSettings(ctx, update)
}

func (a *storeAccess) Engines(ctx context.Context) ([]string, error) {
	return a.service.EngineNames(ctx)
}

func (a *storeAccess) Export(ctx context.Context) (api.LegacyDump, error) {
	return a.service.Export(ctx)
}

func (a *storeAccess) Import(ctx context.Context, dump api.LegacyDump, replace bool) (api.ImportResult, error) {
	return a.service.Import(ctx, dump, replace)
}
