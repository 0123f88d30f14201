// Package daemon coordinates the long-running searchq process.
//
// The daemon is the single owner of the query queue. It holds a flock on
// <data_dir>/searchq.lock so only one instance runs per data directory, and
// every mutation (add, edit, remove, clear, search, settings, import) is
// funnelled through one command loop so writers never interleave. Reads go
// straight to the store.
//
// The same Daemon value backs the chi HTTP server that serves the management
// page and JSON API, and the JSON-RPC socket in package ipc. Keep queue
// semantics in package api; this package only sequences and exposes them.
package daemon
