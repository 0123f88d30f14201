// Package watcher turns committed browser navigations into queued queries.
//
// A Watcher is either Active or Inactive. While Active, every committed
// navigation whose transition type is eligible (address-bar generated by
// default) and whose URL carries the query parameter is treated as a search:
// the query is recorded against the engine resolved from the hostname, a halt
// script is injected into the tab, and the navigation is cancelled. While
// Inactive, every event passes through untouched.
//
// HandleCommitted never returns an error. Registry, store and injection
// failures are logged and absorbed so the browser is never left waiting.
package watcher
