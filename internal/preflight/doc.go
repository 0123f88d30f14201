// Package preflight provides readiness checks for the filesystem paths,
// listener address and desktop integration searchq depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure so a broken
//     data directory shows up before the first capture is lost.
//   - The CLI "searchq status" command prints the same results next to the
//     daemon state.
//
// Checks do not create files. A missing database is reported as not created
// yet.
package preflight
