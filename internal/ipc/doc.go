// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI and the native messaging host.
//
// The socket is created 0600 and a live socket is never replaced, so a
// second daemon cannot hijack the first one's clients. The client bounds
// every call with the caller's context. Errors cross the socket as strings,
// so the client maps well-known messages back onto their sentinels for
// errors.Is.
package ipc
