// Package main hosts the searchq CLI entrypoint and command graph.
//
// The Cobra command tree covers daemon lifecycle (start, stop, restart,
// status), queue and settings maintenance, configuration scaffolding, and the
// two browser-facing entrypoints: the hidden `daemon` command the launcher
// execs and `native-host`, which the browser spawns for native messaging.
//
// Queue commands talk to the daemon over its socket when it is running and
// open the database directly otherwise, so the CLI keeps working while the
// daemon is down.
package main
