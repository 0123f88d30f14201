// Package config loads, normalizes, and validates searchq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SEARCHQ_API_TOKEN. The Config type centralizes every knob the daemon, the
// native messaging host, and the CLI need: data and log directories, the
// management API bind address, watcher filters, and the search engines the
// queue can replay against.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
