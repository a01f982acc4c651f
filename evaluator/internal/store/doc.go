// Package store holds the rolling window of temperature readings per lot
// used by watch mode.
//
// Readings arrive from every scrape cycle, possibly out of order and
// possibly repeated (a gateway re-exposes its last sample until the logger
// records a new one). Append keeps each lot's series sorted by RecordedAt
// and drops repeats of an already stored timestamp. A background goroutine
// (Run) evicts readings older than the retention window.
package store
