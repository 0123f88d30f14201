// Package daemonctl starts, stops and inspects the searchq daemon from the
// CLI side.
//
// Liveness comes from two places: the IPC socket answering and the daemon's
// flock being held. A daemon whose socket is gone but whose lock is still
// held is treated as alive and may be killed via its pid file.
package daemonctl
