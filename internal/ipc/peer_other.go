//go:build !linux

package ipc

import "net"

// checkPeer relies on the socket's 0600 mode where SO_PEERCRED is absent.
func checkPeer(*net.UnixConn) error { return nil }
