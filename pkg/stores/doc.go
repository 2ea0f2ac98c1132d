// Package stores persists typist run history in SQLite.
//
// The schema is managed by golang-migrate from embedded migrations and has
// two tables: runs, one row per typist run with its final status and pass
// and emission counters, and events, the append-only lifecycle log.
// Recorder fills both from the telemetry event stream.
package stores
