// Package database stores scan history in SQLite.
//
// HistoryDB keeps every saved scan report as JSON together with the
// headline figures needed to list history without decoding reports, and
// records which trackers were seen on which domain. The compare command
// reads it to diff scans over time.
//
// The driver is modernc.org/sqlite, so the binary stays CGO-free and the
// database is a single file under the XDG data directory.
package database
