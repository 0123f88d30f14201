package queue

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates no record matched the requested ID.
	ErrNotFound = errors.New("query record not found")
	// ErrVersionConflict indicates the record changed since the caller read it.
	ErrVersionConflict = errors.New("query record version conflict")
)

// Record is one captured search query.
type Record struct {
	ID           string `json:"id"`
	Query        string `json:"query"`
	SearchEngine string `json:"searchEngine"`
	Timestamp    int64  `json:"timestamp"`
	Version      int64  `json:"version"`
}

// CapturedAt returns the capture time as a time.Time.
func (r Record) CapturedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Patch lists the fields of a record to overwrite. Nil fields are left alone.
type Patch struct {
	Query        *string `json:"query,omitempty"`
	SearchEngine *string `json:"searchEngine,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Query == nil && p.SearchEngine == nil
}

// QueryPatch builds a patch that replaces only the query text.
func QueryPatch(query string) Patch {
	return Patch{Query: &query}
}

// EnginePatch builds a patch that re-tags only the search engine.
func EnginePatch(engine string) Patch {
	engine = strings.TrimSpace(engine)
	return Patch{SearchEngine: &engine}
}

func (p Patch) apply(rec *Record) {
	if p.Query != nil {
		rec.Query = *p.Query
	}
	if p.SearchEngine != nil {
		rec.SearchEngine = *p.SearchEngine
	}
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}
