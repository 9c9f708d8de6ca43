// Package database provides SQLite-based storage for linkscan's scan history.
//
// ScanDB stores every scan report as JSON alongside its counters, and the
// broken links of each scan in a separate table so that the history command
// can compare runs without decoding whole reports. Each stored scan gets a
// UUID scan ID.
//
// The database lives in the XDG data directory by default and uses the
// CGO-free modernc.org/sqlite driver in WAL mode.
package database
