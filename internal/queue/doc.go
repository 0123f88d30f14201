// Package queue persists captured search queries and extension settings in
// SQLite.
//
// The Store keeps QueryRecords in insertion order (oldest first) and exposes
// two addressing modes: the positional index the management page renders,
// and a stable record ID with an optimistic version for edits made from a
// stale view. Every mutation runs in its own transaction and retries while
// SQLite reports the database as busy.
//
// Settings live in a small key-value table with JSON-encoded values; the
// settings package layers typed defaults on top of GetSetting/PutSetting.
//
// Schema changes bump schemaVersion in schema.go. Older databases are
// rejected with ErrSchemaMismatch rather than migrated in place.
package queue
