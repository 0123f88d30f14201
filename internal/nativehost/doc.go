// Package nativehost runs the browser-facing side of searchq.
//
// The browser launches `searchq native-host` and talks to it over stdin and
// stdout using native messaging frames. A Host owns one reader loop and one
// writer. Each inbound message is handled on its own goroutine so a slow store
// write or a pending tab round trip never stalls navigation decisions.
//
// Host-initiated calls (tabs.query, tabs.create, tabs.update, search) carry a
// uuid and wait for a reply with the same id, bounded by
// watcher.host_reply_timeout. Searches for engines without a search_url are
// long-polled from the daemon and run through the browser's search API.
//
// Stdout is the messaging channel, so the host logs to its own file only.
package nativehost
