package api

import (
	"strconv"
	"strings"
	"time"

	"searchq/internal/queue"
	"searchq/internal/settings"
)

// QueryRow is a queued query in transport form.
type QueryRow struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	Query        string `json:"query"`
	SearchEngine string `json:"searchEngine"`
	Timestamp    int64  `json:"timestamp"`
	CapturedAt   string `json:"capturedAt"`
	Version      int64  `json:"version"`
}

// FromRecord converts a stored record at index into a row.
func FromRecord(index int, rec queue.Record) QueryRow {
	return QueryRow{
		Index:        index,
		ID:           rec.ID,
		Query:        rec.Query,
		SearchEngine: rec.SearchEngine,
		Timestamp:    rec.Timestamp,
		CapturedAt:   rec.CapturedAt().UTC().Format(time.RFC3339Nano),
		Version:      rec.Version,
	}
}

// QueueView is everything the management page renders.
type QueueView struct {
	Ordering settings.Ordering `json:"ordering"`
	Rows     []QueryRow        `json:"rows"`
	Count    int               `json:"count"`
	Settings settings.Settings `json:"settings"`
	Engines  []string          `json:"engines"`
}

// Ref addresses a record either by stored index or by ID. ID wins when both
// are set.
type Ref struct {
	ID    string `json:"id,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// ByIndex addresses the record at a stored index.
func ByIndex(index int) Ref { return Ref{Index: &index} }

// ByID addresses the record with a stable ID.
func ByID(id string) Ref { return Ref{ID: strings.TrimSpace(id)} }

// ParseRef interprets a path segment: all digits is an index, anything else
// an ID.
func ParseRef(value string) Ref {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil && n >= 0 {
		return ByIndex(n)
	}
	return ByID(value)
}

// Valid reports whether the ref addresses anything.
func (r Ref) Valid() bool {
	return r.ID != "" || r.Index != nil
}

func (r Ref) String() string {
	if r.ID != "" {
		return r.ID
	}
	if r.Index != nil {
		return "#" + strconv.Itoa(*r.Index)
	}
	return "<none>"
}

// AddRequest enqueues a query by hand.
type AddRequest struct {
	Query        string `json:"query"`
	SearchEngine string `json:"searchEngine"`
}

// EditRequest changes a record's query text and/or engine tag. A non-zero
// Version must match the stored version.
type EditRequest struct {
	Ref
	Query        *string `json:"query,omitempty"`
	SearchEngine *string `json:"searchEngine,omitempty"`
	Version      int64   `json:"version,omitempty"`
}

// SearchRequest replays a record. Engine overrides the record's tag when set.
type SearchRequest struct {
	Ref
	Engine string `json:"searchEngine,omitempty"`
}

// SearchResult reports what search-now did.
type SearchResult struct {
	Row     QueryRow `json:"row"`
	Engine  string   `json:"searchEngine"`
	Removed bool     `json:"removed"`
}

// ClearResult reports how many records a clear removed.
type ClearResult struct {
	Removed int64 `json:"removed"`
}

// ImportResult reports the outcome of a legacy import.
type ImportResult struct {
	Imported int               `json:"imported"`
	Replaced bool              `json:"replaced"`
	Settings settings.Settings `json:"settings"`
}

// DaemonStatus describes the running daemon.
type DaemonStatus struct {
	Running    bool              `json:"running"`
	PID        int               `json:"pid"`
	DBPath     string            `json:"dbPath"`
	LockPath   string            `json:"lockPath"`
	SocketPath string            `json:"socketPath"`
	ManagerURL string            `json:"managerUrl"`
	Records    int               `json:"records"`
	Settings   settings.Settings `json:"settings"`
	StartedAt  string            `json:"startedAt,omitempty"`
}

// BrowserSearch is a search a native host runs through the browser's search
// API, for engines that have no search_url.
type BrowserSearch struct {
	Ticket      string `json:"ticket"`
	Engine      string `json:"engine"`
	Query       string `json:"query"`
	Disposition string `json:"disposition"`
}

// WatcherStats mirrors the counters a native host reports.
type WatcherStats struct {
	Intercepted int64 `json:"intercepted"`
	Recorded    int64 `json:"recorded"`
	Duplicates  int64 `json:"duplicates"`
	Failures    int64 `json:"failures"`
}
