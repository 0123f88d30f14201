package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"searchq/internal/engines"
	"searchq/internal/logging"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// ErrEmptyQuery rejects adding or editing a query to blank text.
var ErrEmptyQuery = errors.New("query is empty")

// ErrInvalidRef rejects a request that names neither an index nor an ID.
var ErrInvalidRef = errors.New("record reference is required")

// QueueStore abstracts the persistence QueueService needs.
type QueueStore interface {
	Append(ctx context.Context, rec queue.Record) (*queue.Record, error)
	AppendAll(ctx context.Context, records []queue.Record, replace bool) ([]queue.Record, error)
	List(ctx context.Context) ([]queue.Record, error)
	Get(ctx context.Context, id string) (*queue.Record, error)
	At(ctx context.Context, index int) (*queue.Record, error)
	Count(ctx context.Context) (int, error)
	UpdateAt(ctx context.Context, index int, patch queue.Patch) (bool, error)
	Update(ctx context.Context, id string, patch queue.Patch, expectedVersion int64) (*queue.Record, error)
	RemoveAt(ctx context.Context, index int) (bool, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) (int64, error)
	settings.KV
}

// QueueService implements every queue action offered by the management page
// and the CLI.
type QueueService struct {
	store    QueueStore
	registry engines.Registry
	executor engines.Executor
	logger   *slog.Logger
}

// NewQueueService constructs a QueueService. registry and executor may be nil
// when the caller never lists engines or searches.
func NewQueueService(store QueueStore, registry engines.Registry, executor engines.Executor, logger *slog.Logger) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{
		store:    store,
		registry: registry,
		executor: executor,
		logger:   logging.NewComponentLogger(logger, "queue-service"),
	}
}

// View returns rows arranged by ordering, or by the stored setting when
// ordering is empty.
func (s *QueueService) View(ctx context.Context, ordering settings.Ordering) (QueueView, error) {
	current, err := settings.Load(ctx, s.store)
	if err != nil {
		return QueueView{}, err
	}
	if ordering == "" {
		ordering = current.Ordering
	}
	records, err := s.store.List(ctx)
	if err != nil {
		return QueueView{}, err
	}
	names, err := s.EngineNames(ctx)
	if err != nil {
		s.logger.Warn("engine registry unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "engine_registry_failed"),
			logging.String(logging.FieldImpact, "re-tag menu only lists engines already in the queue"),
		)
	}
	return QueueView{
		Ordering: ordering,
		Rows:     Arrange(records, ordering),
		Count:    len(records),
		Settings: current,
		Engines:  mergeEngineNames(names, records),
	}, nil
}

// List returns rows in stored order.
func (s *QueueService) List(ctx context.Context) ([]QueryRow, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Arrange(records, settings.OrderingQueue), nil
}

// Describe fetches one row.
func (s *QueueService) Describe(ctx context.Context, ref Ref) (QueryRow, error) {
	rec, index, err := s.resolve(ctx, ref)
	if err != nil {
		return QueryRow{}, err
	}
	return FromRecord(index, *rec), nil
}

// Add appends a query tagged with engine.
func (s *QueueService) Add(ctx context.Context, req AddRequest) (QueryRow, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return QueryRow{}, ErrEmptyQuery
	}
	rec, err := s.store.Append(ctx, queue.Record{Query: query, SearchEngine: strings.TrimSpace(req.SearchEngine)})
	if err != nil {
		return QueryRow{}, err
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return QueryRow{}, err
	}
	return FromRecord(count-1, *rec), nil
}

// Append records a captured query as-is. It backs the watcher's recorder.
func (s *QueueService) Append(ctx context.Context, rec queue.Record) (*queue.Record, error) {
	return s.store.Append(ctx, rec)
}

// Edit changes a record's query and/or engine tag.
func (s *QueueService) Edit(ctx context.Context, req EditRequest) (QueryRow, error) {
	var patch queue.Patch
	if req.Query != nil {
		query := strings.TrimSpace(*req.Query)
		if query == "" {
			return QueryRow{}, ErrEmptyQuery
		}
		patch.Query = &query
	}
	if req.SearchEngine != nil {
		patch.SearchEngine = queue.EnginePatch(*req.SearchEngine).SearchEngine
	}

	if req.ID == "" && req.Index != nil && req.Version == 0 {
		ok, err := s.store.UpdateAt(ctx, *req.Index, patch)
		if err != nil {
			return QueryRow{}, err
		}
		if !ok {
			return QueryRow{}, fmt.Errorf("edit %s: %w", req.Ref, queue.ErrNotFound)
		}
		return s.Describe(ctx, req.Ref)
	}

	rec, _, err := s.resolve(ctx, req.Ref)
	if err != nil {
		return QueryRow{}, err
	}
	updated, err := s.store.Update(ctx, rec.ID, patch, req.Version)
	if err != nil {
		return QueryRow{}, err
	}
	return s.Describe(ctx, ByID(updated.ID))
}

// Remove deletes one record.
func (s *QueueService) Remove(ctx context.Context, ref Ref) error {
	if !ref.Valid() {
		return ErrInvalidRef
	}
	if ref.ID != "" {
		return s.store.Remove(ctx, ref.ID)
	}
	ok, err := s.store.RemoveAt(ctx, *ref.Index)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("remove %s: %w", ref, queue.ErrNotFound)
	}
	return nil
}

// Clear empties the queue.
func (s *QueueService) Clear(ctx context.Context) (ClearResult, error) {
	removed, err := s.store.Clear(ctx)
	if err != nil {
		return ClearResult{}, err
	}
	return ClearResult{Removed: removed}, nil
}

// Search replays a record in a new tab. When removeAfterSearch is set and the
// search succeeds, the record leaves the queue; a failed search removes
// nothing.
func (s *QueueService) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if s.executor == nil {
		return SearchResult{}, errors.New("search executor unavailable")
	}
	rec, index, err := s.resolve(ctx, req.Ref)
	if err != nil {
		return SearchResult{}, err
	}
	engine := strings.TrimSpace(req.Engine)
	if engine == "" {
		engine = rec.SearchEngine
	}
	result := SearchResult{Row: FromRecord(index, *rec), Engine: engine}

	ctx = logging.WithRecordID(ctx, rec.ID)
	logger := logging.WithContext(ctx, s.logger)
	if err := s.executor.Execute(ctx, engines.Request{
		Engine:      engine,
		Query:       rec.Query,
		Disposition: engines.DispositionNewTab,
	}); err != nil {
		logging.ErrorWithContext(logger, "search failed", "search_failed",
			logging.Engine(engine),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "configure a search_url for the engine or keep the browser extension connected"),
		)
		return result, err
	}

	current, err := settings.Load(ctx, s.store)
	if err != nil {
		return result, err
	}
	if current.RemoveAfterSearch {
		if err := s.store.Remove(ctx, rec.ID); err != nil {
			return result, fmt.Errorf("remove after search: %w", err)
		}
		result.Removed = true
	}
	logger.Info("search replayed",
		logging.Engine(engine),
		logging.Bool("removed", result.Removed),
		logging.String(logging.FieldEventType, "search_replayed"),
	)
	return result, nil
}

// Settings returns the current settings.
func (s *QueueService) Settings(ctx context.Context) (settings.Settings, error) {
	return settings.Load(ctx, s.store)
}

// UpdateSettings applies a partial settings change.
func (s *QueueService) UpdateSettings(ctx context.Context, update settings.Update) (settings.Settings, error) {
	return settings.Apply(ctx, s.store, update)
}

// EngineNames lists the registry's engines in host order.
func (s *QueueService) EngineNames(ctx context.Context) ([]string, error) {
	if s.registry == nil {
		return nil, nil
	}
	list, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name)
	}
	return names, nil
}

// Count returns the number of queued records.
func (s *QueueService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *QueueService) resolve(ctx context.Context, ref Ref) (*queue.Record, int, error) {
	if !ref.Valid() {
		return nil, 0, ErrInvalidRef
	}
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	if ref.ID != "" {
		for i := range records {
			if records[i].ID == ref.ID {
				return &records[i], i, nil
			}
		}
		return nil, 0, fmt.Errorf("record %s: %w", ref, queue.ErrNotFound)
	}
	index := *ref.Index
	if index < 0 || index >= len(records) {
		return nil, 0, fmt.Errorf("record %s: %w", ref, queue.ErrNotFound)
	}
	return &records[index], index, nil
}

// mergeEngineNames appends engine tags present in the queue but absent from
// the registry, such as hostnames recorded for unknown providers.
func mergeEngineNames(names []string, records []queue.Record) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, rec := range records {
		if rec.SearchEngine == "" {
			continue
		}
		if _, ok := seen[rec.SearchEngine]; ok {
			continue
		}
		seen[rec.SearchEngine] = struct{}{}
		out = append(out, rec.SearchEngine)
	}
	return out
}
