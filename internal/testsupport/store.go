package testsupport

import (
	"context"
	"testing"

	"searchq/internal/config"
	"searchq/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustAppend appends a record with the given query and engine.
func MustAppend(t testing.TB, store *queue.Store, query, engine string) *queue.Record {
	t.Helper()

	rec, err := store.Append(context.Background(), queue.Record{Query: query, SearchEngine: engine})
	if err != nil {
		t.Fatalf("store.Append: %v", err)
	}
	return rec
}

// Queries returns the stored query texts in insertion order.
func Queries(t testing.TB, store *queue.Store) []string {
	t.Helper()

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("store.List: %v", err)
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Query)
	}
	return out
}
