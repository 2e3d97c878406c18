// Package tapgoogleanalytics is a Singer tap for the Google Analytics
// Reporting API v4.
//
// The tap extracts report data for a single Analytics view and emits it as a
// Singer message stream on stdout: a SCHEMA message per stream, RECORD
// messages in report order, and STATE messages that checkpoint progress.
// stderr carries structured logs only, so stdout stays a clean message
// stream for the downstream loader.
//
// # Modes
//
// Discovery generates a stream catalog from report definitions (bundled
// defaults, or a JSON/YAML file from the config):
//
//	tap-google-analytics discover --config config.json > catalog.json
//
// Sync replicates every selected stream, window by window:
//
//	tap-google-analytics sync --config config.json --catalog catalog.json --state state.json
//
// # Replication
//
// The configured date range is split into report windows (daily, weekly or
// monthly). Each window is queried through the paginated Reporting API
// client in pkg/ga, its records are emitted, and a bookmark for the window's
// end date is written as a STATE message. An interrupted sync resumes from
// the last bookmark, re-reading a configurable lookback period to absorb
// late-arriving data.
//
// Every record carries a _sdc_record_hash primary key derived from the view
// ID and the record's dimension values, so loads stay idempotent across
// overlapping windows.
package tapgoogleanalytics
