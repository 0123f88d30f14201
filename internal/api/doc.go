// Package api defines the transport types and queue operations shared by the
// daemon's HTTP and IPC surfaces and by the CLI's direct-store fallback.
//
// # Key Types
//
// QueryRow: one queued query as the management page shows it, carrying its
// stored index and stable ID so actions address the right record regardless
// of display ordering.
//
// QueueView: the rows in display order plus the current settings and the
// engines available for re-tagging.
//
// QueueService: the operations behind every UI and CLI action: add, edit,
// re-tag, remove, clear, search-now, settings, and legacy import/export.
//
// # Design Notes
//
// Arrange is a pure display transform: stack ordering reverses the rows but
// never the stored order. Rows are addressed with a Ref, either a stored index
// or a record ID; IDs let a page holding stale rows act on the right record,
// and a version turns a stale edit into a conflict instead of a lost update.
package api
